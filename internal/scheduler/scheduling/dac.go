package scheduling

import (
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// DAC is a deadline-aware greedy heuristic. Jobs are committed one at a time, most regretted first, where the
// regret of a job is how much more energy its second-cheapest admissible mapping needs than its cheapest one.
// After every commitment the schedule is rebuilt from scratch in deadline order and all deadlines are re-checked.
type DAC struct {
	capacity   internaltypes.ResourceList
	options    *optionSource
	reschedule bool
}

func NewDAC(config configuration.SchedulingConfig, capacity internaltypes.ResourceList, options *optionSource) *DAC {
	return &DAC{
		capacity:   capacity,
		options:    options,
		reschedule: config.Reschedule,
	}
}

func (d *DAC) Name() string {
	return configuration.DacAlgorithm
}

func (d *DAC) Schedule(ctx *logctx.Context, jobs *jobdb.JobTable) Result {
	table := jobs.Copy()
	now := table.Now
	pending := table.Unfinished()
	if len(pending) == 0 {
		return trivial(d.capacity, now)
	}
	variants := d.options.newCache()

	var bounded, unbounded []*jobdb.Job
	for _, job := range pending {
		if job.Request.HasDeadline() {
			bounded = append(bounded, job)
		} else {
			unbounded = append(unbounded, job)
		}
	}
	jar := newJar(d.capacity, now, bounded)

	var placed []placement
	unplaced := bounded
	for len(unplaced) > 0 {
		chosen := -1
		var chosenOptions []*internaltypes.CanonicalMapping
		chosenRegret := math.Inf(-1)
		for i, job := range unplaced {
			options := d.admissible(job, now, jar)
			if len(options) == 0 {
				ctx.Log.WithField("request", job.Request.Id).Debug("no admissible mapping")
				return infeasible()
			}
			r := regret(job, options)
			if r > chosenRegret {
				chosen, chosenOptions, chosenRegret = i, options, r
			}
		}

		job := unplaced[chosen]
		committed := false
		for _, m := range chosenOptions {
			candidate := append(slices.Clone(placed), newPlacement(job, m, d.reschedule))
			sortPlacements(candidate)
			if _, ok := derive(d.capacity, now, candidate, variants); ok {
				placed = candidate
				jar = jar.Subtract(m.ResourceTime(job.Cratio))
				committed = true
				ctx.Log.WithFields(logrus.Fields{
					"request": job.Request.Id,
					"mapping": m.Id,
					"regret":  chosenRegret,
				}).Debug("committed job")
				break
			}
		}
		if !committed {
			ctx.Log.WithField("request", job.Request.Id).Debug("no mapping meets all deadlines")
			return infeasible()
		}
		unplaced = slices.Delete(slices.Clone(unplaced), chosen, chosen+1)
	}

	for _, job := range unbounded {
		m := cheapestFitting(candidates(job, d.reschedule), job.Cratio, d.capacity)
		if m == nil {
			return infeasible()
		}
		placed = append(placed, newPlacement(job, m, d.reschedule))
	}
	sortPlacements(placed)
	s, ok := derive(d.capacity, now, placed, variants)
	if !ok {
		return infeasible()
	}
	s.Verify()
	return Result{
		Feasible:        IsFeasible(table, s),
		Schedule:        s,
		WithinTimeLimit: true,
	}
}

// admissible returns the mappings job could be committed to, cheapest first: they must fit the platform, fit in
// what is left of the jar and finish by the deadline if started now.
func (d *DAC) admissible(job *jobdb.Job, now float64, jar internaltypes.ResourceTimeList) []*internaltypes.CanonicalMapping {
	var rv []*internaltypes.CanonicalMapping
	for _, m := range candidates(job, d.reschedule) {
		if !m.Demand.FitsWithin(d.capacity) {
			continue
		}
		if !m.ResourceTime(job.Cratio).FitsWithin(jar) {
			continue
		}
		if !util.ApproxLessOrEqual(now+m.RemainingTime(job.Cratio), job.Request.AbsoluteDeadline()) {
			continue
		}
		rv = append(rv, m)
	}
	slices.SortStableFunc(rv, func(a, b *internaltypes.CanonicalMapping) bool {
		return a.RemainingEnergy(job.Cratio) < b.RemainingEnergy(job.Cratio)
	})
	return rv
}

func regret(job *jobdb.Job, options []*internaltypes.CanonicalMapping) float64 {
	if len(options) < 2 {
		return math.Inf(1)
	}
	return options[1].RemainingEnergy(job.Cratio) - options[0].RemainingEnergy(job.Cratio)
}

// newJar returns the resource-time available to jobs with deadlines: the platform capacity over the time until the
// latest deadline.
func newJar(capacity internaltypes.ResourceList, now float64, jobs []*jobdb.Job) internaltypes.ResourceTimeList {
	horizon := now
	for _, job := range jobs {
		horizon = math.Max(horizon, job.Request.AbsoluteDeadline())
	}
	return capacity.Scale(horizon - now)
}

func cheapestFitting(mappings []*internaltypes.CanonicalMapping, cratio float64, capacity internaltypes.ResourceList) *internaltypes.CanonicalMapping {
	var rv *internaltypes.CanonicalMapping
	for _, m := range mappings {
		if !m.Demand.FitsWithin(capacity) {
			continue
		}
		if rv == nil || m.RemainingEnergy(cratio) < rv.RemainingEnergy(cratio) {
			rv = m
		}
	}
	return rv
}

// energyOf is the energy a schedule spends, or +Inf for a nil schedule.
func energyOf(s *schedule.Schedule) float64 {
	if s == nil {
		return math.Inf(1)
	}
	return s.Energy()
}
