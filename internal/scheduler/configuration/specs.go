package configuration

import (
	"github.com/go-playground/validator/v10"
)

// PlatformSpec describes the processors available for scheduling.
type PlatformSpec struct {
	Name string
	// Processor groups; processors are numbered in the order given, starting at zero.
	Processors []ProcessorGroupSpec `validate:"required,min=1,dive"`
	// If true, processors of the same type are interchangeable. This adds one transposition per adjacent pair of
	// same-typed processors to the symmetry generators.
	InterchangeableWithinType bool
	// Additional symmetry generators, each a permutation of processor indices.
	Symmetries [][]int
}

// ProcessorGroupSpec is a group of identical processors.
type ProcessorGroupSpec struct {
	// Resource type name, e.g. "big" or "cluster0_little".
	Type string `validate:"required"`
	// Number of processors in the group.
	Count int `validate:"required,gt=0"`
}

// ApplicationsSpec lists the applications a trace may refer to.
type ApplicationsSpec struct {
	Applications []ApplicationSpec `validate:"required,min=1,dive"`
}

// ApplicationSpec is an application together with the Pareto front of its canonical mappings.
type ApplicationSpec struct {
	Name     string        `validate:"required"`
	Mappings []MappingSpec `validate:"required,min=1,dive"`
}

// MappingSpec describes one canonical mapping.
type MappingSpec struct {
	// Optional identifier; defaults to <application>/<index>.
	Id string
	// Number of processors of each type used. May be omitted if Assignment is given.
	Demand map[string]int
	// Execution time from 0% completion.
	Time float64 `validate:"gt=0"`
	// Energy from 0% completion.
	Energy float64 `validate:"gte=0"`
	// Optional processor index per task, used to derive symmetry-equivalent variants.
	Assignment []int
}

func (s PlatformSpec) Validate() error {
	return validator.New().Struct(s)
}

func (s ApplicationsSpec) Validate() error {
	return validator.New().Struct(s)
}
