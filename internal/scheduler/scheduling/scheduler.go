package scheduling

import (
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// Scheduler computes a schedule for a table of jobs.
// Implementations never modify the job table passed to them.
type Scheduler interface {
	Name() string
	Schedule(ctx *logctx.Context, jobs *jobdb.JobTable) Result
}

// Result is the outcome of a scheduling attempt.
type Result struct {
	// True if Schedule finishes every job by its deadline.
	Feasible bool
	// Nil if nothing was produced. May be a partial schedule if Feasible is false.
	Schedule *schedule.Schedule
	// False if the scheduler stopped searching early because its time budget ran out.
	WithinTimeLimit bool
}

// New returns the scheduler selected by config.Algorithm.
// orbits may be nil if config.Rotations is false.
func New(
	config configuration.SchedulingConfig,
	platform *internaltypes.StaticPlatform,
	orbits *orbit.Manager,
	clock clock.PassiveClock,
) (Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if config.Rotations && orbits == nil {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "orbits",
			Value:   orbits,
			Message: "an orbit manager is required when rotations are enabled",
		})
	}
	options := newOptionSource(platform, orbits, config.Rotations, config.MaxRotations)
	switch config.Algorithm {
	case configuration.BruteforceAlgorithm:
		return NewBruteforce(config, platform.Capacity(), options, clock), nil
	case configuration.DacAlgorithm:
		return NewDAC(config, platform.Capacity(), options), nil
	case configuration.LagrangianAlgorithm:
		return NewLagrangian(config, platform.Capacity(), options)
	default:
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "algorithm",
			Value:   config.Algorithm,
			Message: "unknown scheduling algorithm",
		})
	}
}

// IsFeasible returns true if s finishes every unfinished job of jobs by its absolute deadline.
func IsFeasible(jobs *jobdb.JobTable, s *schedule.Schedule) bool {
	if s == nil {
		return false
	}
	if s.Len() > 0 && !util.ApproxEqual(s.Start(), jobs.Now) {
		return false
	}
	for _, job := range jobs.Jobs {
		if job.Finished() {
			continue
		}
		finish, ok := s.FinishTime(job.Request.Id)
		if !ok || !util.ApproxLessOrEqual(finish, job.Request.AbsoluteDeadline()) {
			return false
		}
	}
	return true
}

func infeasible() Result {
	return Result{Feasible: false, WithinTimeLimit: true}
}

func trivial(capacity internaltypes.ResourceList, now float64) Result {
	return Result{
		Feasible:        true,
		Schedule:        schedule.New(capacity, now),
		WithinTimeLimit: true,
	}
}
