package internaltypes

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
)

// CanonicalMapping is one admissible way of running an application: the processors it occupies and the time and
// energy it needs to run from 0% to 100% completion. Time and energy are linear in the completion ratio.
// CanonicalMappings are immutable and shared by pointer.
type CanonicalMapping struct {
	Id         string
	Demand     ResourceList
	FullTime   float64
	FullEnergy float64
	// Optional processor index per task. Used to derive symmetry-equivalent variants.
	Assignment []int
}

// IdleMapping is chosen for a job that makes no progress during a segment.
var IdleMapping = &CanonicalMapping{Id: "idle"}

func NewCanonicalMapping(id string, demand ResourceList, fullTime, fullEnergy float64, assignment []int) (*CanonicalMapping, error) {
	if !(fullTime > 0) || math.IsInf(fullTime, 0) {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "time",
			Value:   fullTime,
			Message: fmt.Sprintf("mapping %s must have a positive finite time", id),
		})
	}
	if !(fullEnergy >= 0) || math.IsInf(fullEnergy, 0) {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "energy",
			Value:   fullEnergy,
			Message: fmt.Sprintf("mapping %s must have a non-negative finite energy", id),
		})
	}
	if demand.HasNegativeValues() {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "demand",
			Value:   demand.String(),
			Message: fmt.Sprintf("mapping %s has negative demand", id),
		})
	}
	return &CanonicalMapping{
		Id:         id,
		Demand:     demand,
		FullTime:   fullTime,
		FullEnergy: fullEnergy,
		Assignment: slices.Clone(assignment),
	}, nil
}

func (m *CanonicalMapping) IsIdle() bool {
	return m == IdleMapping
}

func (m *CanonicalMapping) RemainingTime(cratio float64) float64 {
	if m.IsIdle() {
		return math.Inf(1)
	}
	return m.FullTime * (1 - cratio)
}

func (m *CanonicalMapping) RemainingEnergy(cratio float64) float64 {
	if m.IsIdle() {
		return 0
	}
	return m.FullEnergy * (1 - cratio)
}

// ResourceTime is the processor-seconds needed to finish from cratio.
func (m *CanonicalMapping) ResourceTime(cratio float64) ResourceTimeList {
	if m.IsIdle() {
		return ResourceTimeList{}
	}
	return m.Demand.Scale(m.RemainingTime(cratio))
}

// Progress returns the completion ratio reached after running for duration from cratio.
func (m *CanonicalMapping) Progress(cratio, duration float64) float64 {
	if m.IsIdle() {
		return cratio
	}
	return math.Min(1, cratio+duration/m.FullTime)
}

// WithAssignment returns the n-th symmetry-equivalent variant of m. Time and energy are unchanged; demand is
// recomputed from the new assignment.
func (m *CanonicalMapping) WithAssignment(platform *StaticPlatform, assignment []int, n int) *CanonicalMapping {
	demand, err := platform.DemandOf(assignment)
	schederrors.PanicOnError(err)
	return &CanonicalMapping{
		Id:         fmt.Sprintf("%s@rot%d", m.Id, n),
		Demand:     demand,
		FullTime:   m.FullTime,
		FullEnergy: m.FullEnergy,
		Assignment: slices.Clone(assignment),
	}
}

func (m *CanonicalMapping) String() string {
	return m.Id
}

// MappingsFromSpec builds the canonical mappings of an application and checks them against the platform.
// All problems found are reported.
func MappingsFromSpec(platform *StaticPlatform, spec configuration.ApplicationSpec) ([]*CanonicalMapping, error) {
	var result *multierror.Error
	mappings := make([]*CanonicalMapping, 0, len(spec.Mappings))
	for i, ms := range spec.Mappings {
		id := ms.Id
		if id == "" {
			id = fmt.Sprintf("%s/%d", spec.Name, i)
		}
		m, err := mappingFromSpec(platform, id, ms)
		if err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "application %s mapping %s", spec.Name, id))
			continue
		}
		mappings = append(mappings, m)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return mappings, nil
}

func mappingFromSpec(platform *StaticPlatform, id string, spec configuration.MappingSpec) (*CanonicalMapping, error) {
	var demand ResourceList
	var err error
	switch {
	case len(spec.Demand) > 0:
		demand, err = platform.Factory().FromMap(spec.Demand)
		if err != nil {
			return nil, err
		}
		if len(spec.Assignment) > 0 {
			fromAssignment, err := platform.DemandOf(spec.Assignment)
			if err != nil {
				return nil, err
			}
			if !fromAssignment.Equal(demand) {
				return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
					Name:    "assignment",
					Value:   spec.Assignment,
					Message: fmt.Sprintf("assignment uses %s but demand is %s", fromAssignment, demand),
				})
			}
		}
	case len(spec.Assignment) > 0:
		demand, err = platform.DemandOf(spec.Assignment)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "demand",
			Value:   spec.Demand,
			Message: "either demand or assignment must be given",
		})
	}
	if shortfall, short := demand.ShortfallAgainst(platform.Capacity()); short {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "demand",
			Value:   demand.String(),
			Message: "exceeds platform capacity: " + shortfall.String(),
		})
	}
	return NewCanonicalMapping(id, demand, spec.Time, spec.Energy, spec.Assignment)
}
