package internaltypes

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// ResourceList is a number of processors per processor type.
// The zero value is the empty list, which behaves like all-zero in arithmetic.
// Lists are immutable; every operation returns a new list.
type ResourceList struct {
	resources []int64
	factory   *ResourceListFactory
}

// Shortfall describes the first processor type for which a demand exceeds the available count.
type Shortfall struct {
	Type      string
	Required  int64
	Available int64
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%d %s processors required, %d available", s.Required, s.Type, s.Available)
}

func (rl ResourceList) IsEmpty() bool {
	return rl.factory == nil
}

func (rl ResourceList) Factory() *ResourceListFactory {
	return rl.factory
}

// Get returns the count at index i; empty lists return 0.
func (rl ResourceList) Get(i int) int64 {
	if rl.IsEmpty() {
		return 0
	}
	return rl.resources[i]
}

func (rl ResourceList) Equal(other ResourceList) bool {
	assertSameResourceListFactory(rl.factory, other.factory)
	if rl.IsEmpty() != other.IsEmpty() {
		return rl.AllZero() && other.AllZero()
	}
	return slices.Equal(rl.resources, other.resources)
}

func (rl ResourceList) String() string {
	if rl.IsEmpty() {
		return "empty"
	}
	var b strings.Builder
	for i, name := range rl.factory.indexToName {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", name, rl.resources[i])
	}
	return b.String()
}

// ToMap returns the non-zero counts keyed by type name.
func (rl ResourceList) ToMap() map[string]int64 {
	result := make(map[string]int64, len(rl.resources))
	for i, q := range rl.resources {
		if q != 0 {
			result[rl.factory.indexToName[i]] = q
		}
	}
	return result
}

func (rl ResourceList) AllZero() bool {
	return slices.IndexFunc(rl.resources, func(r int64) bool { return r != 0 }) < 0
}

func (rl ResourceList) HasNegativeValues() bool {
	return slices.IndexFunc(rl.resources, func(r int64) bool { return r < 0 }) >= 0
}

// FitsWithin returns true if no count of rl is greater than the matching count of capacity.
func (rl ResourceList) FitsWithin(capacity ResourceList) bool {
	_, short := rl.ShortfallAgainst(capacity)
	return !short
}

// ShortfallAgainst returns the first type, in factory order, for which rl requires more processors than available
// has. Empty lists count as all-zero.
func (rl ResourceList) ShortfallAgainst(available ResourceList) (Shortfall, bool) {
	assertSameResourceListFactory(rl.factory, available.factory)
	factory := rl.factory
	if factory == nil {
		factory = available.factory
	}
	if factory == nil {
		return Shortfall{}, false
	}
	for i, name := range factory.indexToName {
		if required, have := rl.Get(i), available.Get(i); required > have {
			return Shortfall{Type: name, Required: required, Available: have}, true
		}
	}
	return Shortfall{}, false
}

func (rl ResourceList) Add(other ResourceList) ResourceList {
	return rl.combine(other, func(a, b int64) int64 { return a + b })
}

func (rl ResourceList) Subtract(other ResourceList) ResourceList {
	return rl.combine(other, func(a, b int64) int64 { return a - b })
}

func (rl ResourceList) Negate() ResourceList {
	return ResourceList{}.Subtract(rl)
}

// Scale multiplies every count by a duration, giving processor-seconds per type.
func (rl ResourceList) Scale(duration float64) ResourceTimeList {
	if rl.IsEmpty() {
		return ResourceTimeList{}
	}
	values := make([]float64, len(rl.resources))
	for i, r := range rl.resources {
		if r != 0 {
			values[i] = float64(r) * duration
		}
	}
	return ResourceTimeList{factory: rl.factory, values: values}
}

// combine applies op element-wise. The result is empty only if both operands are.
func (rl ResourceList) combine(other ResourceList, op func(a, b int64) int64) ResourceList {
	assertSameResourceListFactory(rl.factory, other.factory)
	factory := rl.factory
	if factory == nil {
		factory = other.factory
	}
	if factory == nil {
		return ResourceList{}
	}
	result := make([]int64, len(factory.indexToName))
	for i := range result {
		result[i] = op(rl.Get(i), other.Get(i))
	}
	return ResourceList{factory: factory, resources: result}
}
