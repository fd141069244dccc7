package scheduling

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/optimisation"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// Lagrangian relaxes the jar constraint of DAC with one non-negative multiplier per resource type.
// Each iteration every job independently picks the deadline-fitting mapping minimising energy plus priced
// resource-time; the selection is placed in deadline order and kept if feasible and cheaper than the best so far.
// The multipliers then move along the subgradient of the relaxed constraint.
type Lagrangian struct {
	capacity   internaltypes.ResourceList
	options    *optionSource
	reschedule bool
	iterations int
	stepSize   float64
	optimiser  string
	momentum   float64
}

func NewLagrangian(config configuration.SchedulingConfig, capacity internaltypes.ResourceList, options *optionSource) (*Lagrangian, error) {
	c := config.Lagrangian
	if _, err := optimisation.New(c.Optimiser, c.StepSize, c.Momentum); err != nil {
		return nil, err
	}
	if c.Iterations <= 0 {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "iterations",
			Value:   c.Iterations,
			Message: "must be positive",
		})
	}
	return &Lagrangian{
		capacity:   capacity,
		options:    options,
		reschedule: config.Reschedule,
		iterations: c.Iterations,
		stepSize:   c.StepSize,
		optimiser:  c.Optimiser,
		momentum:   c.Momentum,
	}, nil
}

func (l *Lagrangian) Name() string {
	return configuration.LagrangianAlgorithm
}

func (l *Lagrangian) Schedule(ctx *logctx.Context, jobs *jobdb.JobTable) Result {
	table := jobs.Copy()
	now := table.Now
	pending := table.Unfinished()
	if len(pending) == 0 {
		return trivial(l.capacity, now)
	}
	variants := l.options.newCache()

	var bounded []*jobdb.Job
	lowerBound := 0.0
	for _, job := range pending {
		if job.Request.HasDeadline() {
			bounded = append(bounded, job)
		}
		lowerBound += leastRemainingEnergy(candidates(job, l.reschedule), job.Cratio)
	}
	jar := mat.NewVecDense(l.capacity.Factory().NumResources(), newJar(l.capacity, now, bounded).Values())

	opt, err := optimisation.New(l.optimiser, l.stepSize, l.momentum)
	schederrors.PanicOnError(err)
	opt.Reset(jar.Len())
	lambda := mat.NewVecDense(jar.Len(), nil)
	g := mat.NewVecDense(jar.Len(), nil)

	var best *schedule.Schedule
	bestDual := math.Inf(-1)
	iteration := 0
	for ; iteration < l.iterations; iteration++ {
		placements, dual, ok := l.relaxed(pending, now, lambda, g)
		if !ok {
			ctx.Log.Debug("a job has no deadline-fitting mapping")
			return infeasible()
		}
		bestDual = math.Max(bestDual, dual-mat.Dot(lambda, jar))

		sortPlacements(placements)
		if s, feasible := derive(l.capacity, now, placements, variants); feasible && s.Energy() < energyOf(best) {
			best = s
		}

		// g holds the resource-time of the selection; the subgradient of the dual is g - jar.
		g.SubVec(g, jar)
		if mat.Max(lambda) == 0 && mat.Max(g) <= 0 {
			iteration++
			break
		}
		// Ascend the dual by descending on the negated subgradient.
		g.ScaleVec(-1, g)
		lambda = optimisation.ProjectNonNegative(opt.Update(lambda, lambda, g))
	}

	fields := logrus.Fields{
		"iterations": iteration,
		"lowerBound": math.Max(lowerBound, bestDual),
		"lambda":     lambda.RawVector().Data,
	}
	if best == nil {
		ctx.Log.WithFields(fields).Debug("no feasible selection found")
		return infeasible()
	}
	fields["energy"] = best.Energy()
	ctx.Log.WithFields(fields).Debug("lagrangian relaxation done")
	best.Verify()
	return Result{
		Feasible:        IsFeasible(table, best),
		Schedule:        best,
		WithinTimeLimit: true,
	}
}

// relaxed selects for every job the mapping minimising energy plus lambda-priced resource-time among those that fit
// the platform and the deadline. The summed resource-time of the selection is written to rt, and the summed
// priced cost is returned. It returns false if some job has no such mapping.
func (l *Lagrangian) relaxed(pending []*jobdb.Job, now float64, lambda, rt *mat.VecDense) ([]placement, float64, bool) {
	rt.Zero()
	placements := make([]placement, 0, len(pending))
	total := 0.0
	for _, job := range pending {
		var chosen *internaltypes.CanonicalMapping
		var chosenRt *mat.VecDense
		chosenCost := math.Inf(1)
		for _, m := range candidates(job, l.reschedule) {
			if !m.Demand.FitsWithin(l.capacity) {
				continue
			}
			if !util.ApproxLessOrEqual(now+m.RemainingTime(job.Cratio), job.Request.AbsoluteDeadline()) {
				continue
			}
			mrt := mat.NewVecDense(rt.Len(), m.ResourceTime(job.Cratio).Values())
			cost := m.RemainingEnergy(job.Cratio) + mat.Dot(lambda, mrt)
			if cost < chosenCost {
				chosen, chosenRt, chosenCost = m, mrt, cost
			}
		}
		if chosen == nil {
			return nil, 0, false
		}
		rt.AddVec(rt, chosenRt)
		total += chosenCost
		placements = append(placements, newPlacement(job, chosen, l.reschedule))
	}
	return placements, total, true
}
