package internaltypes

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
)

// Platform is the capability query the scheduler core depends on.
type Platform interface {
	ProcessorTypeCounts() map[string]int
}

// StaticPlatform is a fixed set of typed processors, numbered from zero, plus the permutations of processor indices
// under which the platform is symmetric.
type StaticPlatform struct {
	name           string
	factory        *ResourceListFactory
	capacity       ResourceList
	processorTypes []string
	symmetries     [][]int
}

func NewStaticPlatform(spec configuration.PlatformSpec) (*StaticPlatform, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	var typeNames []string
	var processorTypes []string
	counts := map[string]int{}
	for _, group := range spec.Processors {
		if _, ok := counts[group.Type]; !ok {
			typeNames = append(typeNames, group.Type)
		}
		counts[group.Type] += group.Count
		for i := 0; i < group.Count; i++ {
			processorTypes = append(processorTypes, group.Type)
		}
	}
	factory, err := MakeResourceListFactory(typeNames)
	if err != nil {
		return nil, err
	}
	capacity, err := factory.FromMap(counts)
	if err != nil {
		return nil, err
	}

	var result *multierror.Error
	symmetries := make([][]int, 0, len(spec.Symmetries))
	for i, p := range spec.Symmetries {
		if err := validatePermutation(p, len(processorTypes)); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "symmetry %d", i))
			continue
		}
		symmetries = append(symmetries, slices.Clone(p))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if spec.InterchangeableWithinType {
		for i := 0; i+1 < len(processorTypes); i++ {
			if processorTypes[i] == processorTypes[i+1] {
				symmetries = append(symmetries, transposition(len(processorTypes), i, i+1))
			}
		}
	}
	return &StaticPlatform{
		name:           spec.Name,
		factory:        factory,
		capacity:       capacity,
		processorTypes: processorTypes,
		symmetries:     symmetries,
	}, nil
}

func validatePermutation(p []int, n int) error {
	if len(p) != n {
		return errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "symmetries",
			Value:   p,
			Message: fmt.Sprintf("expected a permutation of %d processors", n),
		})
	}
	seen := make([]bool, n)
	for _, v := range p {
		if v < 0 || v >= n || seen[v] {
			return errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "symmetries",
				Value:   p,
				Message: "not a permutation",
			})
		}
		seen[v] = true
	}
	return nil
}

func transposition(n, a, b int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	p[a], p[b] = p[b], p[a]
	return p
}

func (p *StaticPlatform) Name() string {
	return p.name
}

func (p *StaticPlatform) ProcessorTypeCounts() map[string]int {
	rv := make(map[string]int, p.factory.NumResources())
	for i, name := range p.factory.indexToName {
		rv[name] = int(p.capacity.resources[i])
	}
	return rv
}

func (p *StaticPlatform) Factory() *ResourceListFactory {
	return p.factory
}

func (p *StaticPlatform) Capacity() ResourceList {
	return p.capacity
}

func (p *StaticPlatform) NumProcessors() int {
	return len(p.processorTypes)
}

func (p *StaticPlatform) ProcessorType(i int) string {
	return p.processorTypes[i]
}

// Symmetries returns the generators of the platform's symmetry group.
func (p *StaticPlatform) Symmetries() [][]int {
	return p.symmetries
}

// DemandOf returns the number of distinct processors of each type used by an assignment of tasks to processors.
func (p *StaticPlatform) DemandOf(assignment []int) (ResourceList, error) {
	counts := make([]int64, p.factory.NumResources())
	used := make(map[int]bool, len(assignment))
	for _, proc := range assignment {
		if proc < 0 || proc >= len(p.processorTypes) {
			return ResourceList{}, errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "assignment",
				Value:   proc,
				Message: fmt.Sprintf("platform has %d processors", len(p.processorTypes)),
			})
		}
		if used[proc] {
			continue
		}
		used[proc] = true
		counts[p.factory.nameToIndex[p.processorTypes[proc]]]++
	}
	return ResourceList{factory: p.factory, resources: counts}, nil
}
