package internaltypes

import (
	"fmt"

	"github.com/armadaproject/energysched/internal/common/util"
)

// ResourceTimeList is a resource-time product, i.e. processor-seconds per processor type.
type ResourceTimeList struct {
	values  []float64            // immutable, do not change this, return a new struct instead!
	factory *ResourceListFactory // immutable, do not change this!
}

func (rtl ResourceTimeList) IsEmpty() bool {
	return rtl.factory == nil
}

func (rtl ResourceTimeList) Factory() *ResourceListFactory {
	return rtl.factory
}

func (rtl ResourceTimeList) Get(i int) float64 {
	if rtl.IsEmpty() {
		return 0
	}
	return rtl.values[i]
}

func (rtl ResourceTimeList) GetByName(name string) (float64, error) {
	if rtl.IsEmpty() {
		return 0, fmt.Errorf("resource type %s not found as resource time list is empty", name)
	}
	index, ok := rtl.factory.nameToIndex[name]
	if !ok {
		return 0, fmt.Errorf("resource type %s not found", name)
	}
	return rtl.values[index], nil
}

// Values returns a copy of the values in factory index order.
func (rtl ResourceTimeList) Values() []float64 {
	if rtl.IsEmpty() {
		return nil
	}
	return append([]float64(nil), rtl.values...)
}

func (rtl ResourceTimeList) Add(other ResourceTimeList) ResourceTimeList {
	assertSameResourceListFactory(rtl.factory, other.factory)
	if rtl.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return rtl
	}
	result := make([]float64, len(rtl.values))
	for i, v := range rtl.values {
		result[i] = v + other.values[i]
	}
	return ResourceTimeList{factory: rtl.factory, values: result}
}

func (rtl ResourceTimeList) Subtract(other ResourceTimeList) ResourceTimeList {
	assertSameResourceListFactory(rtl.factory, other.factory)
	if other.IsEmpty() {
		return rtl
	}
	result := make([]float64, len(other.values))
	for i, v := range other.values {
		if rtl.IsEmpty() {
			result[i] = -v
		} else {
			result[i] = rtl.values[i] - v
		}
	}
	return ResourceTimeList{factory: other.factory, values: result}
}

// FitsWithin returns true if every component is at most the matching component of other, within util.Epsilon.
func (rtl ResourceTimeList) FitsWithin(other ResourceTimeList) bool {
	assertSameResourceListFactory(rtl.factory, other.factory)
	if rtl.IsEmpty() {
		return true
	}
	for i, v := range rtl.values {
		if !util.ApproxLessOrEqual(v, other.Get(i)) {
			return false
		}
	}
	return true
}

func (rtl ResourceTimeList) String() string {
	if rtl.IsEmpty() {
		return "empty"
	}
	result := ""
	for i, name := range rtl.factory.indexToName {
		if i > 0 {
			result += " "
		}
		result += fmt.Sprintf("%s=%.3f", name, rtl.values[i])
	}
	return result
}
