package simulator

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"k8s.io/utils/clock"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/metrics"
)

// Options control how Simulate runs each simulation.
type Options struct {
	EvictionPeriod        float64
	SuppressSchedulerLogs bool
}

// Simulate replays the trace at tracePath on the platform at platformPath once per scheduling config, running the
// simulations in parallel. Results are returned in the order of configs. All simulations share metrics, labelled by
// config name, so config names must be unique.
func Simulate(
	ctx *logctx.Context,
	fs afero.Fs,
	platformPath, applicationsPath, tracePath string,
	configs []configuration.SchedulingConfig,
	metrics *metrics.Metrics,
	clock clock.PassiveClock,
	opts Options,
) ([]*Result, error) {
	platformSpec, err := PlatformSpecFromFilePath(fs, platformPath)
	if err != nil {
		return nil, err
	}
	platform, err := internaltypes.NewStaticPlatform(platformSpec)
	if err != nil {
		return nil, err
	}
	applicationsSpec, err := ApplicationsSpecFromFilePath(fs, applicationsPath)
	if err != nil {
		return nil, err
	}
	mappings, err := MappingsByApplication(platform, applicationsSpec)
	if err != nil {
		return nil, err
	}
	arrivals, err := TraceFromFilePath(fs, tracePath)
	if err != nil {
		return nil, err
	}
	if err := uniqueNames(configs); err != nil {
		return nil, err
	}

	simulators := make([]*Simulator, len(configs))
	for i, config := range configs {
		s, err := NewSimulator(platform, mappings, arrivals, config, metrics, clock)
		if err != nil {
			return nil, err
		}
		s.EvictionPeriod = opts.EvictionPeriod
		s.SuppressSchedulerLogs = opts.SuppressSchedulerLogs
		simulators[i] = s
	}
	ctx.Log.Infof("Simulating %d arrivals on platform %s with %d scheduling configs", len(arrivals), platform.Name(), len(configs))

	results := make([]*Result, len(simulators))
	g, ctx := logctx.ErrGroup(ctx)
	for i, s := range simulators {
		i, s := i, s
		g.Go(func() error {
			result, err := s.Run(ctx)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func uniqueNames(configs []configuration.SchedulingConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, config := range configs {
		if seen[config.Name] {
			return errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "name",
				Value:   config.Name,
				Message: "scheduling config names must be unique",
			})
		}
		seen[config.Name] = true
	}
	return nil
}
