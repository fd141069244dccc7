package manager

import (
	"github.com/pkg/errors"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// ErrServiceStopped is returned by Service methods called after Run has returned.
var ErrServiceStopped = errors.New("resource manager service stopped")

// Submission is a request to admit a job arriving at Arrival.
type Submission struct {
	App         string
	Arrival     float64
	Deadline    float64
	Mappings    []*internaltypes.CanonicalMapping
	StartCratio float64
}

// Snapshot is a consistent view of a ResourceManager taken between two commands.
type Snapshot struct {
	Stats   Stats
	Now     float64
	History *schedule.Schedule
	Active  *schedule.Schedule
}

type command struct {
	apply func(ctx *logctx.Context, m *ResourceManager) error
	done  chan error
}

// Service owns a ResourceManager and applies commands to it one at a time from its own goroutine, so that callers
// on any goroutine can share a manager. Commands are applied in the order they are received.
type Service struct {
	manager  *ResourceManager
	commands chan command
	stopped  chan struct{}
}

func NewService(manager *ResourceManager) *Service {
	return &Service{
		manager:  manager,
		commands: make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Run applies commands until ctx is cancelled. It must be called exactly once.
func (s *Service) Run(ctx *logctx.Context) error {
	defer close(s.stopped)
	ctx.Log.Infof("resource manager %s started", s.manager.Name())
	for {
		select {
		case <-ctx.Done():
			ctx.Log.Infof("resource manager %s stopped", s.manager.Name())
			return nil
		case cmd := <-s.commands:
			cmd.done <- cmd.apply(ctx, s.manager)
		}
	}
}

// Submit admits or refuses a request. Arrivals before the current simulated time panic inside Run's goroutine, so
// callers must submit in non-decreasing arrival order; simulated time is first advanced to the arrival.
func (s *Service) Submit(ctx *logctx.Context, submission Submission) (*jobdb.JobRequest, error) {
	var req *jobdb.JobRequest
	err := s.do(ctx, func(ctx *logctx.Context, m *ResourceManager) error {
		if err := m.SimulateTo(ctx, submission.Arrival); err != nil {
			return err
		}
		var err error
		req, err = m.NewRequest(ctx, submission.App, submission.Arrival, submission.Deadline, submission.Mappings, submission.StartCratio)
		return err
	})
	return req, err
}

// Advance moves simulated time forward to t.
func (s *Service) Advance(ctx *logctx.Context, t float64) error {
	return s.do(ctx, func(ctx *logctx.Context, m *ResourceManager) error {
		return m.SimulateTo(ctx, t)
	})
}

// EvictTerminated removes finished and refused requests from the manager's request table.
func (s *Service) EvictTerminated(ctx *logctx.Context) (int, error) {
	var evicted int
	err := s.do(ctx, func(ctx *logctx.Context, m *ResourceManager) error {
		var err error
		evicted, err = m.EvictTerminated()
		return err
	})
	return evicted, err
}

// Finish commits all outstanding work and returns the final snapshot.
func (s *Service) Finish(ctx *logctx.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := s.do(ctx, func(ctx *logctx.Context, m *ResourceManager) error {
		if err := m.Finish(ctx); err != nil {
			return err
		}
		snapshot = snapshotOf(m)
		return nil
	})
	return snapshot, err
}

// Stats returns a snapshot of the manager without advancing time.
func (s *Service) Stats(ctx *logctx.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := s.do(ctx, func(ctx *logctx.Context, m *ResourceManager) error {
		snapshot = snapshotOf(m)
		return nil
	})
	return snapshot, err
}

func (s *Service) do(ctx *logctx.Context, apply func(ctx *logctx.Context, m *ResourceManager) error) error {
	cmd := command{apply: apply, done: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return ErrServiceStopped
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func snapshotOf(m *ResourceManager) Snapshot {
	return Snapshot{
		Stats:   m.Stats(),
		Now:     m.Now(),
		History: m.History().Copy(),
		Active:  m.Active().Copy(),
	}
}
