package manager

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/metrics"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
	"github.com/armadaproject/energysched/internal/scheduler/scheduling"
)

// Stats summarises the decisions a ResourceManager has taken so far.
type Stats struct {
	RequestsSeen     int
	RequestsAccepted int
	// Energy of the committed history plus the energy still planned in the active schedule.
	TotalEnergy   float64
	SchedulerName string
}

// ResourceManager performs admission control for a single platform. Every arriving request is admitted only if the
// scheduler finds a schedule meeting the deadlines of all previously accepted requests as well as the new one.
// Simulated time only moves forward, through SimulateTo.
// ResourceManager is not safe for concurrent use; see Service.
type ResourceManager struct {
	name      string
	platform  *internaltypes.StaticPlatform
	scheduler scheduling.Scheduler
	requests  *jobdb.RequestTable
	metrics   *metrics.Metrics
	clock     clock.PassiveClock
	// Orbit cache shared with the scheduler, or nil without rotations.
	orbits *orbit.Manager
	now    float64
	// Jobs of accepted, unfinished requests.
	jobs *jobdb.JobTable
	// Segments committed so far, starting at time zero.
	history *schedule.Schedule
	// Plan for the jobs in the job table, starting at now.
	active   *schedule.Schedule
	seen     int
	accepted int
}

func NewResourceManager(
	name string,
	platform *internaltypes.StaticPlatform,
	scheduler scheduling.Scheduler,
	requests *jobdb.RequestTable,
	metrics *metrics.Metrics,
	clock clock.PassiveClock,
) *ResourceManager {
	return &ResourceManager{
		name:      name,
		platform:  platform,
		scheduler: scheduler,
		requests:  requests,
		metrics:   metrics,
		clock:     clock,
		jobs:      jobdb.NewJobTable(0),
		history:   schedule.New(platform.Capacity(), 0),
		active:    schedule.New(platform.Capacity(), 0),
	}
}

// WithOrbits makes the manager drop the cached orbits of an application once its last request is evicted.
func (m *ResourceManager) WithOrbits(orbits *orbit.Manager) *ResourceManager {
	m.orbits = orbits
	return m
}

func (m *ResourceManager) Name() string {
	return m.name
}

func (m *ResourceManager) Now() float64 {
	return m.now
}

// History returns the committed segments. The returned schedule must not be modified.
func (m *ResourceManager) History() *schedule.Schedule {
	return m.history
}

// Active returns the schedule currently planned for the accepted, unfinished requests.
// The returned schedule must not be modified.
func (m *ResourceManager) Active() *schedule.Schedule {
	return m.active
}

// Jobs returns a copy of the table of accepted, unfinished jobs.
func (m *ResourceManager) Jobs() *jobdb.JobTable {
	return m.jobs.Copy()
}

func (m *ResourceManager) Requests() *jobdb.RequestTable {
	return m.requests
}

func (m *ResourceManager) Stats() Stats {
	return Stats{
		RequestsSeen:     m.seen,
		RequestsAccepted: m.accepted,
		TotalEnergy:      m.history.Energy() + m.active.Energy(),
		SchedulerName:    m.scheduler.Name(),
	}
}

// SimulateTo advances simulated time to t, committing the part of the active schedule before t to the history and
// recording the progress made by each job. Requests whose jobs complete are marked finished. Moving time backwards
// panics.
func (m *ResourceManager) SimulateTo(ctx *logctx.Context, t float64) error {
	if util.ApproxLess(t, m.now) {
		schederrors.Invariantf("monotonic-time", "cannot simulate back from %f to %f", m.now, t)
	}
	if t < m.now {
		t = m.now
	}
	active := m.active.Copy()
	split := active.SplitAt(t)
	segments := active.Segments()
	for _, segment := range segments[:split] {
		if err := m.commit(ctx, segment); err != nil {
			return err
		}
	}
	if util.ApproxLess(m.history.End(), t) {
		m.history.AppendSegment(schedule.NewSegment(m.platform.Capacity(), m.history.End(), t))
	}
	m.now = t
	m.jobs.Now = t
	m.active = schedule.New(m.platform.Capacity(), t)
	for _, segment := range segments[split:] {
		m.active.AppendSegment(segment)
	}
	return m.reportState()
}

// commit appends segment to the history and advances every member's job.
func (m *ResourceManager) commit(ctx *logctx.Context, segment *schedule.Segment) error {
	if util.ApproxLess(m.history.End(), segment.Start()) {
		m.history.AppendSegment(schedule.NewSegment(m.platform.Capacity(), m.history.End(), segment.Start()))
	}
	m.history.AppendSegment(segment)
	for _, jsm := range segment.Members() {
		job, ok := m.jobs.Get(jsm.Request.Id)
		if !ok {
			schederrors.Invariantf("committed-job", "segment [%f, %f) contains unknown request %s", segment.Start(), segment.End(), jsm.Request.Id)
		}
		job.Advance(ctx, jsm.EndCratio, jsm.Mapping)
		if !job.Finished() {
			continue
		}
		if err := m.requests.Transition(ctx, job.Request, jobdb.Finished); err != nil {
			return err
		}
		m.jobs.Remove(job.Request.Id)
		ctx.Log.WithFields(logrus.Fields{
			"request": job.Request.Id,
			"app":     job.Request.App,
			"finish":  jsm.EndTime,
		}).Debug("request finished")
	}
	return nil
}

// NewRequest submits a request arriving now for app with the given relative deadline, which may be +Inf, and
// decides whether to admit it. startCratio is the completion ratio the job starts from, usually zero.
// The returned request is accepted or refused; errors are only returned on internal failures.
func (m *ResourceManager) NewRequest(
	ctx *logctx.Context,
	app string,
	arrival, deadline float64,
	mappings []*internaltypes.CanonicalMapping,
	startCratio float64,
) (*jobdb.JobRequest, error) {
	if !util.ApproxEqual(arrival, m.now) {
		schederrors.Invariantf("arrival", "request for %s arrives at %f but simulated time is %f", app, arrival, m.now)
	}
	req, err := m.requests.NewRequest(app, m.now, deadline, mappings)
	if err != nil {
		return nil, err
	}
	m.seen++
	ctx = logctx.WithLogFields(ctx, logrus.Fields{
		"request":  req.Id,
		"seq":      req.Seq,
		"app":      app,
		"arrival":  req.Arrival,
		"deadline": req.Deadline,
	})

	job := jobdb.NewJob(req, startCratio)
	candidate := m.jobs.Copy()
	candidate.Now = m.now
	candidate.Add(job)

	start := m.clock.Now()
	result := m.scheduler.Schedule(ctx, candidate)
	duration := m.clock.Since(start)

	admitted := result.Feasible && result.Schedule != nil
	m.metrics.ReportDecision(m.name, admitted, result.WithinTimeLimit, duration)
	if !admitted {
		if err := m.requests.Transition(ctx, req, jobdb.Refused); err != nil {
			return nil, err
		}
		ctx.Log.WithFields(logrus.Fields{
			"durationMs":      duration.Milliseconds(),
			"withinTimeLimit": result.WithinTimeLimit,
		}).Info("request refused")
		return req, m.reportState()
	}

	if err := m.requests.Transition(ctx, req, jobdb.Accepted); err != nil {
		return nil, err
	}
	m.accepted++
	if job.Finished() {
		if err := m.requests.Transition(ctx, req, jobdb.Finished); err != nil {
			return nil, err
		}
		candidate.Remove(req.Id)
	}
	m.jobs = candidate
	m.active = result.Schedule
	ctx.Log.WithFields(logrus.Fields{
		"durationMs":      duration.Milliseconds(),
		"withinTimeLimit": result.WithinTimeLimit,
		"plannedEnergy":   result.Schedule.Energy(),
		"plannedEnd":      result.Schedule.End(),
	}).Info("request accepted")
	return req, m.reportState()
}

// Finish advances simulated time to the end of the active schedule, committing all remaining work.
func (m *ResourceManager) Finish(ctx *logctx.Context) error {
	end := m.active.End()
	if end < m.now {
		end = m.now
	}
	if err := m.SimulateTo(ctx, end); err != nil {
		return err
	}
	if m.jobs.Len() > 0 {
		return errors.Errorf("%d accepted jobs unfinished at the end of the active schedule", m.jobs.Len())
	}
	return nil
}

// EvictTerminated removes finished and refused requests from the request table, returning how many were removed.
// Applications left without any request have their cached orbits dropped.
func (m *ResourceManager) EvictTerminated() (int, error) {
	if m.orbits == nil {
		return m.requests.EvictTerminated()
	}
	retiring := make(map[string]bool)
	for _, status := range []jobdb.RequestStatus{jobdb.Refused, jobdb.Finished} {
		reqs, err := m.requests.WithStatus(status)
		if err != nil {
			return 0, err
		}
		for _, req := range reqs {
			retiring[req.App] = true
		}
	}
	n, err := m.requests.EvictTerminated()
	if err != nil {
		return 0, err
	}
	remaining, err := m.requests.All()
	if err != nil {
		return n, err
	}
	for _, req := range remaining {
		delete(retiring, req.App)
	}
	for app := range retiring {
		m.orbits.EvictGraph(app)
	}
	return n, nil
}

func (m *ResourceManager) reportState() error {
	counts, err := m.requests.CountByStatus()
	if err != nil {
		return err
	}
	m.metrics.ReportState(m.name, m.now, m.history.Energy()+m.active.Energy(), m.jobs.Len(), counts)
	return nil
}
