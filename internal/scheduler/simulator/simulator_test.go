package simulator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/manager"
	"github.com/armadaproject/energysched/internal/scheduler/metrics"
)

func TestEventQueue(t *testing.T) {
	var q EventQueue
	_, ok := q.Pop()
	assert.False(t, ok)

	for i, at := range []float64{3, 1, 3, 0, 1} {
		q.Push(at, i)
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, 3.0, q.Latest())

	var popped []any
	for event, ok := q.Pop(); ok; event, ok = q.Pop() {
		popped = append(popped, event.payload)
	}
	assert.Equal(t, []any{3, 1, 4, 0, 2}, popped)
	assert.Equal(t, 0, q.Len())
}

func newTestSimulator(t *testing.T, trace string, config configuration.SchedulingConfig) *Simulator {
	fs := testFs(t, trace)
	platformSpec, err := PlatformSpecFromFilePath(fs, platformPath)
	require.NoError(t, err)
	platform, err := internaltypes.NewStaticPlatform(platformSpec)
	require.NoError(t, err)
	applications, err := ApplicationsSpecFromFilePath(fs, applicationsPath)
	require.NoError(t, err)
	mappings, err := MappingsByApplication(platform, applications)
	require.NoError(t, err)
	arrivals, err := TraceFromFilePath(fs, tracePath)
	require.NoError(t, err)
	s, err := NewSimulator(platform, mappings, arrivals, config, metrics.New(), clocktesting.NewFakeClock(time.Time{}))
	require.NoError(t, err)
	return s
}

func TestSimulator_WorkedExample(t *testing.T) {
	for _, algorithm := range []string{configuration.BruteforceAlgorithm, configuration.DacAlgorithm} {
		t.Run(algorithm, func(t *testing.T) {
			s := newTestSimulator(t, workedTrace, testConfig(algorithm, algorithm))
			result, err := s.Run(logctx.Background())
			require.NoError(t, err)
			assert.Equal(t, algorithm, result.Name)
			assert.Equal(t, s.RunId, result.RunId)
			assert.NotEmpty(t, result.RunId)
			assert.Equal(t, "octa", result.Platform)
			assert.Equal(t, manager.Stats{
				RequestsSeen:     2,
				RequestsAccepted: 2,
				TotalEnergy:      result.History.Energy(),
				SchedulerName:    algorithm,
			}, result.Stats)
			assert.Equal(t, 8.0, result.Makespan)
			assert.Empty(t, result.Refused)
			assert.Equal(t, workedExampleHistory, result.History.String())
		})
	}
}

func TestSimulator_RefusesAndContinues(t *testing.T) {
	trace := workedTrace + "B,1,3\nA,9,4\n"
	s := newTestSimulator(t, trace, testConfig("dac", configuration.DacAlgorithm))
	result, err := s.Run(logctx.Background())
	require.NoError(t, err)

	// B at 1 cannot finish in 3s.
	// A at 9 only meets its deadline on one big processor, finishing at 13.
	assert.Equal(t, 4, result.Stats.RequestsSeen)
	assert.Equal(t, 3, result.Stats.RequestsAccepted)
	assert.Len(t, result.Refused, 1)
	assert.Equal(t, 13.0, result.Makespan)
	assert.InDelta(t, 28, result.Stats.TotalEnergy, 1e-9)
	assert.NotPanics(t, result.History.Verify)
}

func TestSimulator_EvictionPeriod(t *testing.T) {
	trace := workedTrace + "B,1,3\nA,9,10\n"
	s := newTestSimulator(t, trace, testConfig("dac", configuration.DacAlgorithm))
	s.EvictionPeriod = 2
	s.SuppressSchedulerLogs = true
	result, err := s.Run(logctx.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stats.RequestsSeen)
	assert.Equal(t, 3, result.Stats.RequestsAccepted)
	assert.InDelta(t, 24, result.Stats.TotalEnergy, 1e-9)
}

func TestSimulator_Cancelled(t *testing.T) {
	s := newTestSimulator(t, workedTrace, testConfig("dac", configuration.DacAlgorithm))
	ctx, cancel := logctx.WithCancel(logctx.Background())
	cancel()
	_, err := s.Run(ctx)
	assert.Error(t, err)
}

func TestNewSimulator_UnknownApplications(t *testing.T) {
	fs := testFs(t, workedTrace)
	platformSpec, err := PlatformSpecFromFilePath(fs, platformPath)
	require.NoError(t, err)
	platform, err := internaltypes.NewStaticPlatform(platformSpec)
	require.NoError(t, err)

	_, err = NewSimulator(
		platform,
		map[string][]*internaltypes.CanonicalMapping{},
		[]Arrival{{Application: "X"}, {Application: "Y"}},
		testConfig("dac", configuration.DacAlgorithm),
		metrics.New(),
		clocktesting.NewFakeClock(time.Time{}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"X"`)
	assert.Contains(t, err.Error(), `"Y"`)
}

func TestSimulate(t *testing.T) {
	fs := testFs(t, workedTrace)
	configs := []configuration.SchedulingConfig{
		testConfig("exact", configuration.BruteforceAlgorithm),
		testConfig("greedy", configuration.DacAlgorithm),
		testConfig("relaxed", configuration.LagrangianAlgorithm),
	}
	results, err := Simulate(
		logctx.Background(),
		fs,
		platformPath, applicationsPath, tracePath,
		configs,
		metrics.New(),
		clocktesting.NewFakeClock(time.Time{}),
		Options{SuppressSchedulerLogs: true},
	)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, configs[i].Name, result.Name)
		assert.Equal(t, 2, result.Stats.RequestsAccepted)
		assert.InDelta(t, 18, result.Stats.TotalEnergy, 1e-9)
	}
}

func TestSimulate_Errors(t *testing.T) {
	tests := map[string]struct {
		trace   string
		configs []configuration.SchedulingConfig
		message string
	}{
		"duplicate config names": {
			trace: workedTrace,
			configs: []configuration.SchedulingConfig{
				testConfig("same", configuration.DacAlgorithm),
				testConfig("same", configuration.BruteforceAlgorithm),
			},
			message: "names must be unique",
		},
		"unknown application": {
			trace:   workedTrace + "Z,1,1\n",
			configs: []configuration.SchedulingConfig{testConfig("dac", configuration.DacAlgorithm)},
			message: `"Z"`,
		},
		"bad trace": {
			trace:   "application,arrival,deadline\nA,later,1\n",
			configs: []configuration.SchedulingConfig{testConfig("dac", configuration.DacAlgorithm)},
			message: "row 1",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Simulate(
				logctx.Background(),
				testFs(t, tc.trace),
				platformPath, applicationsPath, tracePath,
				tc.configs,
				metrics.New(),
				clocktesting.NewFakeClock(time.Time{}),
				Options{},
			)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.message), err.Error())
		})
	}
}
