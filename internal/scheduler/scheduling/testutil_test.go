package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
)

var algorithms = []string{
	configuration.BruteforceAlgorithm,
	configuration.DacAlgorithm,
	configuration.LagrangianAlgorithm,
}

// The dump of the optimal schedule for the two-job example.
const workedExampleDump = `segment 0 [0.000000, 5.000000) energy=15.750000
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
	aBig     *internaltypes.CanonicalMapping
	aLittle  *internaltypes.CanonicalMapping
	bBig     *internaltypes.CanonicalMapping
	reqA     *jobdb.JobRequest
	reqB     *jobdb.JobRequest
}

// newFixture is a platform with four big and four little processors, and two requests arriving at time zero:
// A may run on one big processor for 4s using 10J or on two little ones for 8s using 6J, with deadline 10;
// B runs on two big processors for 5s using 12J, with deadline 6.
func newFixture(t *testing.T) *fixture {
	platform, err := internaltypes.NewStaticPlatform(configuration.PlatformSpec{
		Name: "test",
		Processors: []configuration.ProcessorGroupSpec{
			{Type: "big", Count: 4},
			{Type: "little", Count: 4},
		},
	})
	require.NoError(t, err)
	f := &fixture{platform: platform}
	f.aBig = f.mapping(t, "A/0", 1, 0, 4, 10)
	f.aLittle = f.mapping(t, "A/1", 0, 2, 8, 6)
	f.bBig = f.mapping(t, "B/0", 2, 0, 5, 12)
	f.reqA = jobdb.NewJobRequest("a", 1, "A", 0, 10, []*internaltypes.CanonicalMapping{f.aBig, f.aLittle})
	f.reqB = jobdb.NewJobRequest("b", 2, "B", 0, 6, []*internaltypes.CanonicalMapping{f.bBig})
	return f
}

func (f *fixture) mapping(t *testing.T, id string, big, little int64, duration, energy float64) *internaltypes.CanonicalMapping {
	m, err := internaltypes.NewCanonicalMapping(id, f.platform.Factory().FromSlice([]int64{big, little}), duration, energy, nil)
	require.NoError(t, err)
	return m
}

func (f *fixture) table() *jobdb.JobTable {
	return jobdb.NewJobTable(0, jobdb.NewJob(f.reqA, 0), jobdb.NewJob(f.reqB, 0))
}

func testConfig(algorithm string) configuration.SchedulingConfig {
	config := configuration.DefaultSchedulingConfig()
	config.Algorithm = algorithm
	return config
}

func newScheduler(t *testing.T, f *fixture, config configuration.SchedulingConfig) Scheduler {
	var orbits *orbit.Manager
	if config.Rotations {
		group, err := orbit.NewPermutationGroup(f.platform.NumProcessors(), f.platform.Symmetries())
		require.NoError(t, err)
		orbits, err = orbit.NewManager(group, config.OrbitCacheSize)
		require.NoError(t, err)
	}
	s, err := New(config, f.platform, orbits, clocktesting.NewFakeClock(time.Time{}))
	require.NoError(t, err)
	return s
}

// steppingClock advances by step every time elapsed time is measured.
type steppingClock struct {
	*clocktesting.FakeClock
	step time.Duration
}

func (c *steppingClock) Since(t time.Time) time.Duration {
	c.Step(c.step)
	return c.FakeClock.Since(t)
}
