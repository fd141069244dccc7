package scheduling

import (
	"container/heap"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// The time budget and context are checked once every timeCheckInterval pops of the search queue.
const timeCheckInterval = 256

// Bruteforce is an exhaustive best-first branch-and-bound search for the minimum-energy feasible schedule.
// Each step of the search chooses a mapping (or idleness) for every unfinished job and runs the resulting
// combination until the first of its jobs finishes.
type Bruteforce struct {
	capacity            internaltypes.ResourceList
	options             *optionSource
	clock               clock.PassiveClock
	reschedule          bool
	allowMemoization    bool
	memoTableSize       int
	energyDropTolerance float64
	timeLimit           time.Duration
	timeCheckInterval   int
}

func NewBruteforce(config configuration.SchedulingConfig, capacity internaltypes.ResourceList, options *optionSource, clock clock.PassiveClock) *Bruteforce {
	return &Bruteforce{
		capacity:            capacity,
		options:             options,
		clock:               clock,
		reschedule:          config.Reschedule,
		allowMemoization:    config.AllowMemoization,
		memoTableSize:       config.MemoTableSize,
		energyDropTolerance: config.EnergyDropTolerance,
		timeLimit:           config.TimeLimit,
		timeCheckInterval:   timeCheckInterval,
	}
}

func (b *Bruteforce) Name() string {
	return configuration.BruteforceAlgorithm
}

// search holds the state of one Schedule call.
type search struct {
	*Bruteforce
	ctx      *logctx.Context
	jobs     []*jobdb.Job
	variants *variantCache
	queue    stateQueue
	memo     *memoTable
	best     *searchState
	advanced *searchState
	nextSeq  int64
	expanded int
	pruned   int
}

func (b *Bruteforce) Schedule(ctx *logctx.Context, jobs *jobdb.JobTable) Result {
	table := jobs.Copy()
	if len(table.Unfinished()) == 0 {
		return trivial(b.capacity, table.Now)
	}
	s := &search{
		Bruteforce: b,
		ctx:        ctx,
		jobs:       table.Jobs,
		variants:   b.options.newCache(),
	}
	if b.allowMemoization {
		s.memo = newMemoTable(b.memoTableSize)
	}
	withinTimeLimit := s.run(table.Now)

	fields := logrus.Fields{
		"expanded": s.expanded,
		"pruned":   s.pruned,
	}
	if s.memo != nil {
		fields["memoEntries"] = s.memo.Len()
		fields["memoDropped"] = s.memo.dropped
	}
	if s.best != nil {
		fields["energy"] = s.best.spent
	}
	ctx.Log.WithFields(fields).Debug("bruteforce search done")

	if s.best != nil {
		s.best.schedule.Verify()
		return Result{
			Feasible:        IsFeasible(table, s.best.schedule),
			Schedule:        s.best.schedule,
			WithinTimeLimit: withinTimeLimit,
		}
	}
	rv := Result{Feasible: false, WithinTimeLimit: withinTimeLimit}
	if !withinTimeLimit && s.advanced != nil {
		rv.Schedule = s.advanced.schedule
	}
	return rv
}

// run searches until the queue is empty or the budget is exhausted, returning false in the latter case.
func (s *search) run(now float64) bool {
	start := s.clock.Now()
	root := s.initialState(now)
	if !s.viable(root) {
		return true
	}
	heap.Push(&s.queue, root)
	pops := 0
	for s.queue.Len() > 0 {
		pops++
		if pops%s.timeCheckInterval == 0 {
			if s.ctx.Err() != nil || (s.timeLimit > 0 && s.clock.Since(start) > s.timeLimit) {
				s.ctx.Log.WithFields(logrus.Fields{
					"expanded":  s.expanded,
					"timeLimit": s.timeLimit,
					"feasible":  s.best != nil,
				}).Warn("bruteforce search budget exhausted")
				return false
			}
		}
		state := heap.Pop(&s.queue).(searchState)
		if s.prunedByBound(state) {
			s.pruned++
			continue
		}
		if s.advanced == nil || state.unfinished < s.advanced.unfinished ||
			(state.unfinished == s.advanced.unfinished && state.time > s.advanced.time) {
			st := state
			s.advanced = &st
		}
		s.expanded++
		s.expand(state)
	}
	return true
}

func (s *search) initialState(now float64) searchState {
	n := len(s.jobs)
	state := searchState{
		schedule: schedule.New(s.capacity, now),
		cratios:  make([]float64, n),
		locked:   make([]*internaltypes.CanonicalMapping, n),
		time:     now,
	}
	for i, job := range s.jobs {
		state.cratios[i] = job.Cratio
		if job.Finished() {
			state.cratios[i] = 1
			continue
		}
		state.unfinished++
		if !s.reschedule && job.InProgress() {
			state.locked[i] = job.Mapping
		}
	}
	state.bestCase = s.bestCaseEnergy(state)
	state.seq = s.nextSeq
	s.nextSeq++
	return state
}

// options returns the mappings job i may use in the next step of state.
func (s *search) options(state searchState, i int) []*internaltypes.CanonicalMapping {
	if state.locked[i] != nil {
		return []*internaltypes.CanonicalMapping{state.locked[i]}
	}
	job := s.jobs[i]
	var rv []*internaltypes.CanonicalMapping
	for _, m := range job.Request.Mappings {
		for _, v := range s.variants.of(job.Request, m) {
			if v.Demand.FitsWithin(s.capacity) {
				rv = append(rv, v)
			}
		}
	}
	return append(rv, internaltypes.IdleMapping)
}

// bestCaseEnergy is the energy spent so far plus, for every unfinished job, the least energy it could still need.
func (s *search) bestCaseEnergy(state searchState) float64 {
	energy := state.spent
	for i, c := range state.cratios {
		if c >= 1 {
			continue
		}
		energy += leastRemainingEnergy(s.nonIdleOptions(state, i), c)
	}
	return energy
}

// leastRemainingEnergy is the least energy any of mappings needs to finish from cratio, +Inf if there are none.
func leastRemainingEnergy(mappings []*internaltypes.CanonicalMapping, cratio float64) float64 {
	least := math.Inf(1)
	for _, m := range mappings {
		least = math.Min(least, m.RemainingEnergy(cratio))
	}
	return least
}

func (s *search) nonIdleOptions(state searchState, i int) []*internaltypes.CanonicalMapping {
	if state.locked[i] != nil {
		return []*internaltypes.CanonicalMapping{state.locked[i]}
	}
	return s.jobs[i].Request.Mappings
}

func (s *search) prunedByBound(state searchState) bool {
	if s.best == nil {
		return false
	}
	return state.bestCase >= s.best.spent*(1-s.energyDropTolerance)
}

// viable returns false if some unfinished job cannot meet its deadline even on its fastest mapping from now on.
func (s *search) viable(state searchState) bool {
	for i, c := range state.cratios {
		if c >= 1 {
			continue
		}
		fastest := math.Inf(1)
		for _, m := range s.nonIdleOptions(state, i) {
			if m.Demand.FitsWithin(s.capacity) {
				fastest = math.Min(fastest, m.RemainingTime(c))
			}
		}
		if math.IsInf(fastest, 1) || !util.ApproxLessOrEqual(state.time+fastest, s.jobs[i].Request.AbsoluteDeadline()) {
			return false
		}
	}
	return true
}

// expand enumerates every combination of options for the unfinished jobs of state, depth-first with an
// incremental capacity check, and pushes the resulting children.
func (s *search) expand(state searchState) {
	var active []int
	var choices [][]*internaltypes.CanonicalMapping
	for i, c := range state.cratios {
		if c < 1 {
			active = append(active, i)
			choices = append(choices, s.options(state, i))
		}
	}
	chosen := make([]*internaltypes.CanonicalMapping, len(active))
	var recurse func(k int, usage internaltypes.ResourceList, anyRunning bool)
	recurse = func(k int, usage internaltypes.ResourceList, anyRunning bool) {
		if k == len(active) {
			if anyRunning {
				s.step(state, active, chosen)
			}
			return
		}
		for _, m := range choices[k] {
			next := usage
			if !m.IsIdle() {
				next = usage.Add(m.Demand)
				if !next.FitsWithin(s.capacity) {
					continue
				}
			}
			chosen[k] = m
			recurse(k+1, next, anyRunning || !m.IsIdle())
		}
	}
	recurse(0, s.capacity.Factory().MakeAllZero(), false)
}

// step runs the chosen combination until the first running job finishes and pushes the resulting state.
func (s *search) step(state searchState, active []int, chosen []*internaltypes.CanonicalMapping) {
	length := math.Inf(1)
	for k, i := range active {
		if !chosen[k].IsIdle() {
			length = math.Min(length, chosen[k].RemainingTime(state.cratios[i]))
		}
	}
	end := state.time + length

	child := searchState{
		cratios: append([]float64(nil), state.cratios...),
		locked:  append([]*internaltypes.CanonicalMapping(nil), state.locked...),
		time:    end,
	}
	members := make([]*schedule.JobSegmentMapping, 0, len(active))
	for k, i := range active {
		m := chosen[k]
		if m.IsIdle() {
			continue
		}
		req := s.jobs[i].Request
		jsm := schedule.NewJobSegmentMapping(req, m, state.time, state.cratios[i], schedule.WithEndTime(end))
		if jsm.Finished() && !util.ApproxLessOrEqual(jsm.EndTime, req.AbsoluteDeadline()) {
			return
		}
		members = append(members, jsm)
		child.cratios[i] = jsm.EndCratio
		if !s.reschedule && !jsm.Finished() {
			child.locked[i] = m
		}
	}
	segment := schedule.NewSegment(s.capacity, state.time, end, members...)

	for _, c := range child.cratios {
		if c < 1 {
			child.unfinished++
		}
	}
	child.lastSegmentEnergy = segment.Energy()
	child.spent = state.spent + child.lastSegmentEnergy
	child.bestCase = s.bestCaseEnergy(child)
	if !s.viable(child) || s.prunedByBound(child) {
		s.pruned++
		return
	}
	if s.memo != nil && s.memo.visit(s.ctx, child) {
		s.pruned++
		return
	}

	child.schedule = state.schedule.Copy()
	child.schedule.AppendSegment(segment)
	child.seq = s.nextSeq
	s.nextSeq++

	if child.unfinished == 0 {
		if s.best == nil || child.spent < s.best.spent {
			s.best = &child
		}
		return
	}
	heap.Push(&s.queue, child)
}
