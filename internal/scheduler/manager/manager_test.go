package manager

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/metrics"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
	"github.com/armadaproject/energysched/internal/scheduler/scheduling"
)

// The history of admitting A and B at time zero and running to completion.
const workedExampleHistory = `segment 0 [0.000000, 5.000000) energy=15.750000
    request  app  mapping  startCratio  endCratio  energy
    #1       A    A/1      0.000000     0.625000   3.750000
    #2       B    B/0      0.000000     1.000000   12.000000
segment 1 [5.000000, 8.000000) energy=2.250000
    request  app  mapping  startCratio  endCratio  energy
    #1       A    A/1      0.625000     1.000000   2.250000
total energy: 18.000000 end time: 8.000000
`

type fixture struct {
	platform *internaltypes.StaticPlatform
	metrics  *metrics.Metrics
	// A may run on one big processor for 4s using 10J or on two little ones for 8s using 6J.
	a []*internaltypes.CanonicalMapping
	// B runs on two big processors for 5s using 12J.
	b []*internaltypes.CanonicalMapping
}

func newFixture(t *testing.T) *fixture {
	platform, err := internaltypes.NewStaticPlatform(configuration.PlatformSpec{
		Name: "test",
		Processors: []configuration.ProcessorGroupSpec{
			{Type: "big", Count: 4},
			{Type: "little", Count: 4},
		},
	})
	require.NoError(t, err)
	f := &fixture{platform: platform, metrics: metrics.New()}
	f.a = []*internaltypes.CanonicalMapping{
		f.mapping(t, "A/0", 1, 0, 4, 10),
		f.mapping(t, "A/1", 0, 2, 8, 6),
	}
	f.b = []*internaltypes.CanonicalMapping{
		f.mapping(t, "B/0", 2, 0, 5, 12),
	}
	return f
}

func (f *fixture) mapping(t *testing.T, id string, big, little int64, duration, energy float64) *internaltypes.CanonicalMapping {
	m, err := internaltypes.NewCanonicalMapping(id, f.platform.Factory().FromSlice([]int64{big, little}), duration, energy, nil)
	require.NoError(t, err)
	return m
}

func (f *fixture) manager(t *testing.T, algorithm string) *ResourceManager {
	config := configuration.DefaultSchedulingConfig()
	config.Algorithm = algorithm
	clock := clocktesting.NewFakeClock(time.Time{})
	scheduler, err := scheduling.New(config, f.platform, nil, clock)
	require.NoError(t, err)
	requests, err := jobdb.NewRequestTable()
	require.NoError(t, err)
	return NewResourceManager("test", f.platform, scheduler, requests, f.metrics, clock)
}

func TestResourceManager_WorkedExample(t *testing.T) {
	for _, algorithm := range []string{configuration.BruteforceAlgorithm, configuration.DacAlgorithm} {
		t.Run(algorithm, func(t *testing.T) {
			ctx := logctx.Background()
			f := newFixture(t)
			m := f.manager(t, algorithm)

			a, err := m.NewRequest(ctx, "A", 0, 10, f.a, 0)
			require.NoError(t, err)
			assert.Equal(t, jobdb.Accepted, a.Status())
			b, err := m.NewRequest(ctx, "B", 0, 6, f.b, 0)
			require.NoError(t, err)
			assert.Equal(t, jobdb.Accepted, b.Status())
			assert.InDelta(t, 18, m.Active().Energy(), 1e-9)

			require.NoError(t, m.SimulateTo(ctx, 5))
			assert.Equal(t, 5.0, m.Now())
			assert.Equal(t, jobdb.Finished, b.Status())
			assert.Equal(t, jobdb.Accepted, a.Status())
			jobs := m.Jobs()
			require.Equal(t, 1, jobs.Len())
			job, ok := jobs.Get(a.Id)
			require.True(t, ok)
			assert.InDelta(t, 0.625, job.Cratio, 1e-9)
			assert.Equal(t, "A/1", job.Mapping.Id)
			assert.Equal(t, 5.0, m.Active().Start())

			require.NoError(t, m.Finish(ctx))
			assert.Equal(t, 8.0, m.Now())
			assert.Equal(t, jobdb.Finished, a.Status())
			assert.Equal(t, 0, m.Jobs().Len())
			assert.Equal(t, 0, m.Active().Len())
			assert.Equal(t, workedExampleHistory, m.History().String())
			assert.Equal(t, Stats{
				RequestsSeen:     2,
				RequestsAccepted: 2,
				TotalEnergy:      m.History().Energy(),
				SchedulerName:    algorithm,
			}, m.Stats())
			assert.InDelta(t, 18, m.Stats().TotalEnergy, 1e-9)
		})
	}
}

func TestResourceManager_RefusesInfeasibleRequests(t *testing.T) {
	tests := map[string]struct {
		app      string
		deadline float64
		mappings func(f *fixture) []*internaltypes.CanonicalMapping
	}{
		"deadline too short": {
			app:      "A",
			deadline: 2,
			mappings: func(f *fixture) []*internaltypes.CanonicalMapping { return f.a },
		},
		"conflicts with accepted work": {
			app:      "B",
			deadline: 6,
			mappings: func(f *fixture) []*internaltypes.CanonicalMapping { return f.b },
		},
		"exceeds capacity": {
			app:      "C",
			deadline: math.Inf(1),
			mappings: func(f *fixture) []*internaltypes.CanonicalMapping {
				return []*internaltypes.CanonicalMapping{f.mapping(t, "C/0", 5, 0, 1, 1)}
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := logctx.Background()
			f := newFixture(t)
			m := f.manager(t, configuration.DacAlgorithm)

			// B occupies two big processors until 5 and A must share the rest.
			_, err := m.NewRequest(ctx, "B", 0, 6, f.b, 0)
			require.NoError(t, err)
			_, err = m.NewRequest(ctx, "B", 0, 6, f.b, 0)
			require.NoError(t, err)
			before := m.Active()

			req, err := m.NewRequest(ctx, tc.app, 0, tc.deadline, tc.mappings(f), 0)
			require.NoError(t, err)
			assert.Equal(t, jobdb.Refused, req.Status())
			assert.Same(t, before, m.Active())
			assert.Equal(t, 2, m.Jobs().Len())
			assert.Equal(t, 3, m.Stats().RequestsSeen)
			assert.Equal(t, 2, m.Stats().RequestsAccepted)

			counts, err := m.Requests().CountByStatus()
			require.NoError(t, err)
			assert.Equal(t, 1, counts[jobdb.Refused])
			assert.Equal(t, 2, counts[jobdb.Accepted])
		})
	}
}

func TestResourceManager_AlreadyFinishedRequest(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	m := f.manager(t, configuration.DacAlgorithm)

	req, err := m.NewRequest(ctx, "A", 0, 10, f.a, 1)
	require.NoError(t, err)
	assert.Equal(t, jobdb.Finished, req.Status())
	assert.Equal(t, 0, m.Jobs().Len())
	assert.Equal(t, 1, m.Stats().RequestsAccepted)
	assert.Equal(t, 0.0, m.Stats().TotalEnergy)
}

func TestResourceManager_StartCratio(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	m := f.manager(t, configuration.DacAlgorithm)

	// Half of B is left: 2.5s and 6J on two big processors.
	_, err := m.NewRequest(ctx, "B", 0, 6, f.b, 0.5)
	require.NoError(t, err)
	require.NoError(t, m.Finish(ctx))
	assert.InDelta(t, 2.5, m.Now(), 1e-9)
	assert.InDelta(t, 6, m.Stats().TotalEnergy, 1e-9)
}

func TestResourceManager_SimulateBeyondActiveSchedule(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	m := f.manager(t, configuration.DacAlgorithm)

	_, err := m.NewRequest(ctx, "B", 0, 6, f.b, 0)
	require.NoError(t, err)
	require.NoError(t, m.SimulateTo(ctx, 20))

	history := m.History()
	require.Equal(t, 2, history.Len())
	assert.Equal(t, 5.0, history.Segment(1).Start())
	assert.Equal(t, 20.0, history.End())
	assert.Equal(t, 0, history.Segment(1).Len())
	assert.InDelta(t, 12, history.Energy(), 1e-9)
	assert.Equal(t, 20.0, m.Active().Start())

	// Requests arriving later are scheduled from the new time.
	req, err := m.NewRequest(ctx, "B", 20, 6, f.b, 0)
	require.NoError(t, err)
	assert.Equal(t, jobdb.Accepted, req.Status())
	assert.Equal(t, 26.0, req.AbsoluteDeadline())
	assert.Equal(t, 25.0, m.Active().End())
}

func TestResourceManager_SplitsSegmentAtSimulatedTime(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	m := f.manager(t, configuration.DacAlgorithm)

	b, err := m.NewRequest(ctx, "B", 0, 6, f.b, 0)
	require.NoError(t, err)
	require.NoError(t, m.SimulateTo(ctx, 2))

	assert.Equal(t, jobdb.Accepted, b.Status())
	job, ok := m.Jobs().Get(b.Id)
	require.True(t, ok)
	assert.InDelta(t, 0.4, job.Cratio, 1e-9)
	assert.InDelta(t, 4.8, m.History().Energy(), 1e-9)
	assert.InDelta(t, 7.2, m.Active().Energy(), 1e-9)
	assert.InDelta(t, 12, m.Stats().TotalEnergy, 1e-9)

	require.NoError(t, m.Finish(ctx))
	assert.Equal(t, jobdb.Finished, b.Status())
	assert.Equal(t, 2, m.History().Len())
	assert.InDelta(t, 12, m.History().Energy(), 1e-9)
}

func TestResourceManager_Fatal(t *testing.T) {
	tests := map[string]func(ctx *logctx.Context, f *fixture, m *ResourceManager){
		"time moves backwards": func(ctx *logctx.Context, f *fixture, m *ResourceManager) {
			_ = m.SimulateTo(ctx, 5)
			_ = m.SimulateTo(ctx, 4)
		},
		"arrival in the past": func(ctx *logctx.Context, f *fixture, m *ResourceManager) {
			_ = m.SimulateTo(ctx, 5)
			_, _ = m.NewRequest(ctx, "A", 4, 10, f.a, 0)
		},
		"arrival in the future": func(ctx *logctx.Context, f *fixture, m *ResourceManager) {
			_, _ = m.NewRequest(ctx, "A", 1, 10, f.a, 0)
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := logctx.Background()
			f := newFixture(t)
			m := f.manager(t, configuration.DacAlgorithm)
			assert.Panics(t, func() { tc(ctx, f, m) })
		})
	}
}

func TestResourceManager_EvictTerminated(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	m := f.manager(t, configuration.DacAlgorithm)

	_, err := m.NewRequest(ctx, "B", 0, 6, f.b, 0)
	require.NoError(t, err)
	_, err = m.NewRequest(ctx, "A", 0, 1, f.a, 0)
	require.NoError(t, err)
	require.NoError(t, m.SimulateTo(ctx, 1))

	evicted, err := m.EvictTerminated()
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Requests().Len())

	require.NoError(t, m.Finish(ctx))
	evicted, err = m.EvictTerminated()
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, m.Requests().Len())
}

func TestResourceManager_EvictTerminatedDropsOrbitsOfRetiredApplications(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	group, err := orbit.NewPermutationGroup(f.platform.NumProcessors(), nil)
	require.NoError(t, err)
	orbits, err := orbit.NewManager(group, 10)
	require.NoError(t, err)
	m := f.manager(t, configuration.DacAlgorithm).WithOrbits(orbits)
	orbits.Lookup("A", orbit.Assignment{0})
	orbits.Lookup("B", orbit.Assignment{0, 1})
	require.Equal(t, 2, orbits.Len())

	_, err = m.NewRequest(ctx, "B", 0, 6, f.b, 0)
	require.NoError(t, err)
	_, err = m.NewRequest(ctx, "A", 0, 1, f.a, 0)
	require.NoError(t, err)
	_, err = m.NewRequest(ctx, "A", 0, 10, f.a, 0)
	require.NoError(t, err)

	// One A request is refused but another is still accepted.
	evicted, err := m.EvictTerminated()
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 2, orbits.Len())

	require.NoError(t, m.Finish(ctx))
	evicted, err = m.EvictTerminated()
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, orbits.Len())
}

func TestResourceManager_ReportsMetrics(t *testing.T) {
	ctx := logctx.Background()
	f := newFixture(t)
	m := f.manager(t, configuration.DacAlgorithm)

	_, err := m.NewRequest(ctx, "A", 0, 10, f.a, 0)
	require.NoError(t, err)
	_, err = m.NewRequest(ctx, "A", 0, 1, f.a, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(f.metrics, "energysched_requests_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics, "energysched_scheduling_duration_seconds"))
	assert.Equal(t, 0, testutil.CollectAndCount(f.metrics, "energysched_scheduling_time_limit_exceeded_total"))
	assert.Equal(t, 4, testutil.CollectAndCount(f.metrics, "energysched_stored_requests"))
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics, "energysched_active_jobs"))
}
