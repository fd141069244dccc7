package configuration

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BruteforceAlgorithm = "bruteforce"
	DacAlgorithm        = "dac"
	LagrangianAlgorithm = "lagrangian"
)

// SchedulingConfig controls which scheduling algorithm is used and how it explores the search space.
type SchedulingConfig struct {
	// Optional name used in logs and summaries. Defaults to the file name the config was loaded from.
	Name string
	// One of bruteforce, dac or lagrangian.
	Algorithm string `validate:"required,oneof=bruteforce dac lagrangian"`
	// If true, a job may be remapped or paused between segments. If false, a job runs to completion on the mapping it
	// started with.
	Reschedule bool
	// If true, the bruteforce search prunes states dominated by previously seen states.
	AllowMemoization bool
	// Maximum number of entries kept in the memoization table. Zero means unbounded.
	MemoTableSize int `validate:"gte=0"`
	// A partial schedule is pruned once its best-case energy reaches (1-EnergyDropTolerance) times the energy of the
	// best known feasible schedule: only branches that could beat it by more than this fraction are explored.
	// A branch slightly worse than the best is therefore pruned as well. Zero gives exact branch-and-bound.
	EnergyDropTolerance float64 `validate:"gte=0,lt=1"`
	// Wall-clock budget for a single bruteforce invocation. Zero means unlimited.
	TimeLimit time.Duration `validate:"gte=0"`
	// If true, symmetry-equivalent variants of each mapping are considered when resolving resource conflicts.
	Rotations bool
	// Maximum number of orbit elements inspected per mapping when Rotations is set.
	MaxRotations int `validate:"gte=0"`
	// Number of orbit lookup entries kept alive at any one time.
	OrbitCacheSize int `validate:"gte=0"`
	Lagrangian LagrangianConfig
}

// LagrangianConfig configures the Lagrangian relaxation heuristic.
type LagrangianConfig struct {
	// Number of multiplier updates.
	Iterations int
	// Step size of the multiplier optimiser.
	StepSize float64
	// One of descent or nesterov.
	Optimiser string
	// Momentum for the nesterov optimiser, in [0, 1).
	Momentum float64
}

func DefaultSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{
		Algorithm:           DacAlgorithm,
		Reschedule:          true,
		AllowMemoization:    true,
		MemoTableSize:       100000,
		EnergyDropTolerance: 0,
		Rotations:           false,
		MaxRotations:        16,
		OrbitCacheSize:      1024,
		Lagrangian: LagrangianConfig{
			Iterations: 50,
			StepSize:   0.01,
			Optimiser:  "descent",
		},
	}
}

func (c SchedulingConfig) Validate() error {
	validate := validator.New()
	validate.RegisterStructValidation(SchedulingConfigValidation, SchedulingConfig{})
	return validate.Struct(c)
}

// SchedulingConfigValidation checks the fields that are only required for some algorithms.
func SchedulingConfigValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(SchedulingConfig)
	if c.Algorithm == LagrangianAlgorithm {
		if c.Lagrangian.Iterations < 1 {
			sl.ReportError(c.Lagrangian.Iterations, "Lagrangian.Iterations", "Iterations", "gte", "1")
		}
		if c.Lagrangian.StepSize <= 0 {
			sl.ReportError(c.Lagrangian.StepSize, "Lagrangian.StepSize", "StepSize", "gt", "0")
		}
		if c.Lagrangian.Optimiser != "" && c.Lagrangian.Optimiser != "descent" && c.Lagrangian.Optimiser != "nesterov" {
			sl.ReportError(c.Lagrangian.Optimiser, "Lagrangian.Optimiser", "Optimiser", "oneof", "descent nesterov")
		}
		if c.Lagrangian.Momentum < 0 || c.Lagrangian.Momentum >= 1 {
			sl.ReportError(c.Lagrangian.Momentum, "Lagrangian.Momentum", "Momentum", "range", "[0,1)")
		}
	}
	if c.Rotations && c.MaxRotations == 0 {
		sl.ReportError(c.MaxRotations, "MaxRotations", "MaxRotations", "required_with", "Rotations")
	}
}
