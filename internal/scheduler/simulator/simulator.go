package simulator

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/renstrom/shortuuid"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/logging"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/manager"
	"github.com/armadaproject/energysched/internal/scheduler/metrics"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
	"github.com/armadaproject/energysched/internal/scheduler/scheduling"
)

// Result is the outcome of replaying a trace against one scheduling config.
type Result struct {
	// Name of the scheduling config.
	Name string
	// Random id distinguishing runs of the same config.
	RunId    string
	Platform string
	Stats    manager.Stats
	// Simulated time at which the last accepted request finished.
	Makespan float64
	// Ids of refused requests, in arrival order.
	Refused []string
	History *schedule.Schedule
	// Wall-clock time the simulation took.
	Duration time.Duration
}

// Simulator replays a trace of arrivals against a resource manager.
type Simulator struct {
	Name     string
	RunId    string
	platform *internaltypes.StaticPlatform
	mappings map[string][]*internaltypes.CanonicalMapping
	service  *manager.Service
	clock    clock.PassiveClock
	// Arrivals and advance events ordered by simulated time.
	events EventQueue
	// Current simulated time.
	time    float64
	refused []string
	// If positive, terminated requests are evicted from the request table every this many simulated seconds.
	EvictionPeriod float64
	// If true, log lines emitted while admitting requests are discarded.
	SuppressSchedulerLogs bool
}

// NewSimulator returns a simulator for the given trace. Every application named in the trace must have mappings.
func NewSimulator(
	platform *internaltypes.StaticPlatform,
	mappings map[string][]*internaltypes.CanonicalMapping,
	arrivals []Arrival,
	config configuration.SchedulingConfig,
	metrics *metrics.Metrics,
	clock clock.PassiveClock,
) (*Simulator, error) {
	var result *multierror.Error
	for i, arrival := range arrivals {
		if _, ok := mappings[arrival.Application]; !ok {
			result = multierror.Append(result, errors.WithMessagef(
				&schederrors.ErrNotFound{Type: "application", Value: arrival.Application},
				"arrival %d", i,
			))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	var orbits *orbit.Manager
	if config.Rotations {
		group, err := orbit.NewPermutationGroup(platform.NumProcessors(), platform.Symmetries())
		if err != nil {
			return nil, err
		}
		orbits, err = orbit.NewManager(group, config.OrbitCacheSize)
		if err != nil {
			return nil, err
		}
	}
	scheduler, err := scheduling.New(config, platform, orbits, clock)
	if err != nil {
		return nil, err
	}
	requests, err := jobdb.NewRequestTable()
	if err != nil {
		return nil, err
	}
	rm := manager.NewResourceManager(config.Name, platform, scheduler, requests, metrics, clock).WithOrbits(orbits)
	s := &Simulator{
		Name:     config.Name,
		RunId:    shortuuid.New(),
		platform: platform,
		mappings: mappings,
		service:  manager.NewService(rm),
		clock:    clock,
	}
	for _, arrival := range arrivals {
		s.events.Push(arrival.Arrival, arrivalEvent{arrival: arrival})
	}
	return s, nil
}

// Run submits every arrival in order of arrival time, breaking ties by trace order, then runs the accepted work to
// completion. Run may only be called once.
func (s *Simulator) Run(ctx *logctx.Context) (*Result, error) {
	startTime := s.clock.Now()
	ctx = logctx.WithLogFields(ctx, logrus.Fields{"scheduler": s.Name, "run": s.RunId})
	if s.EvictionPeriod > 0 {
		lastArrival := s.events.Latest()
		for t := s.EvictionPeriod; t < lastArrival; t += s.EvictionPeriod {
			s.events.Push(t, advanceEvent{})
		}
	}

	serviceCtx := ctx
	if s.SuppressSchedulerLogs {
		serviceCtx = logctx.New(ctx.Context, logging.Discard())
	}
	g, gctx := logctx.ErrGroup(serviceCtx)
	runCtx, stop := logctx.WithCancel(gctx)
	defer stop()
	g.Go(func() error { return s.service.Run(runCtx) })

	result, err := s.replay(ctx)
	stop()
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return nil, err
	}
	result.Duration = s.clock.Since(startTime)
	ctx.Log.WithFields(logrus.Fields{
		"seen":       result.Stats.RequestsSeen,
		"accepted":   result.Stats.RequestsAccepted,
		"energy":     result.Stats.TotalEnergy,
		"makespan":   result.Makespan,
		"durationMs": result.Duration.Milliseconds(),
	}).Info("simulation complete")
	return result, nil
}

func (s *Simulator) replay(ctx *logctx.Context) (*Result, error) {
	for event, ok := s.events.Pop(); ok; event, ok = s.events.Pop() {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := s.handleSimulatorEvent(ctx, event); err != nil {
			return nil, err
		}
	}
	snapshot, err := s.service.Finish(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{
		Name:     s.Name,
		RunId:    s.RunId,
		Platform: s.platform.Name(),
		Stats:    snapshot.Stats,
		Makespan: snapshot.Now,
		Refused:  s.refused,
		History:  snapshot.History,
	}, nil
}

func (s *Simulator) handleSimulatorEvent(ctx *logctx.Context, event Event) error {
	s.time = event.time
	ctx = logctx.WithLogField(ctx, "simulatedTime", event.time)
	switch e := event.payload.(type) {
	case arrivalEvent:
		return s.handleArrival(ctx, e.arrival)
	case advanceEvent:
		return s.handleAdvance(ctx)
	}
	return nil
}

func (s *Simulator) handleArrival(ctx *logctx.Context, arrival Arrival) error {
	req, err := s.service.Submit(ctx, manager.Submission{
		App:         arrival.Application,
		Arrival:     arrival.Arrival,
		Deadline:    arrival.Deadline,
		Mappings:    s.mappings[arrival.Application],
		StartCratio: arrival.StartCratio,
	})
	if err != nil {
		return err
	}
	if req.Status() == jobdb.Refused {
		s.refused = append(s.refused, req.Id)
	}
	return nil
}

func (s *Simulator) handleAdvance(ctx *logctx.Context) error {
	if err := s.service.Advance(ctx, s.time); err != nil {
		return err
	}
	evicted, err := s.service.EvictTerminated(ctx)
	if err != nil {
		return err
	}
	ctx.Log.Debugf("evicted %d terminated requests", evicted)
	return nil
}
