package internaltypes

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/schederrors"
)

// ResourceListFactory assigns a dense index to every processor type of a platform.
// All resource lists built from one factory share its dimensions.
type ResourceListFactory struct {
	nameToIndex map[string]int
	indexToName []string
}

func MakeResourceListFactory(resourceTypes []string) (*ResourceListFactory, error) {
	if len(resourceTypes) == 0 {
		return nil, errors.New("no resource types configured")
	}
	indexToName := make([]string, len(resourceTypes))
	nameToIndex := make(map[string]int, len(resourceTypes))
	for i, name := range resourceTypes {
		if name == "" {
			return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "resourceType",
				Value:   name,
				Message: "resource type names must be non-empty",
			})
		}
		if _, exists := nameToIndex[name]; exists {
			return nil, fmt.Errorf("duplicate resource type name %q", name)
		}
		nameToIndex[name] = i
		indexToName[i] = name
	}
	return &ResourceListFactory{
		indexToName: indexToName,
		nameToIndex: nameToIndex,
	}, nil
}

func (factory *ResourceListFactory) MakeAllZero() ResourceList {
	result := make([]int64, len(factory.indexToName))
	return ResourceList{resources: result, factory: factory}
}

// FromMap builds a resource list from processor counts keyed by type name. Unknown types are an error.
func (factory *ResourceListFactory) FromMap(counts map[string]int) (ResourceList, error) {
	result := make([]int64, len(factory.indexToName))
	for k, v := range counts {
		index, ok := factory.nameToIndex[k]
		if !ok {
			return ResourceList{}, errors.WithStack(&schederrors.ErrNotFound{
				Type:    "resourceType",
				Value:   k,
				Message: fmt.Sprintf("supported types are %v", factory.indexToName),
			})
		}
		if v < 0 {
			return ResourceList{}, errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    k,
				Value:   v,
				Message: "processor counts must be non-negative",
			})
		}
		result[index] = int64(v)
	}
	return ResourceList{resources: result, factory: factory}, nil
}

// FromSlice builds a resource list from counts given in factory index order.
func (factory *ResourceListFactory) FromSlice(counts []int64) ResourceList {
	if len(counts) != len(factory.indexToName) {
		schederrors.Invariantf("dimensions", "expected %d counts but got %d", len(factory.indexToName), len(counts))
	}
	return ResourceList{resources: slices.Clone(counts), factory: factory}
}

func (factory *ResourceListFactory) Names() []string {
	return slices.Clone(factory.indexToName)
}

func (factory *ResourceListFactory) NumResources() int {
	return len(factory.indexToName)
}

func (factory *ResourceListFactory) Index(name string) (int, bool) {
	i, ok := factory.nameToIndex[name]
	return i, ok
}

func (factory *ResourceListFactory) SummaryString() string {
	result := ""
	for i, name := range factory.indexToName {
		if i > 0 {
			result += " "
		}
		result += fmt.Sprintf("%d:%s", i, name)
	}
	return result
}

func assertSameResourceListFactory(a, b *ResourceListFactory) {
	if a == nil || b == nil || a == b {
		return
	}
	if !slices.Equal(a.indexToName, b.indexToName) {
		schederrors.Invariantf("dimensions", "mismatched resource types [%s] and [%s]", a.SummaryString(), b.SummaryString())
	}
}
