package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/weaveworks/promrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/logging"
	"github.com/armadaproject/energysched/internal/scheduler/metrics"
	"github.com/armadaproject/energysched/internal/scheduler/simulator"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a trace of job requests against energy-aware schedulers.",
		RunE:  runSimulations,
	}
	cmd.Flags().String("platform", "", "Path of the platform spec.")
	cmd.Flags().String("applications", "", "Path of the applications spec listing the mappings of each application.")
	cmd.Flags().String("trace", "", "Path of the CSV trace of arrivals.")
	cmd.Flags().String("configs", "", "Glob pattern specifying scheduler configurations to simulate.")
	cmd.Flags().Bool("dump", false, "Print the committed schedule of each simulation.")
	cmd.Flags().String("logLevel", "info", "Log level, e.g. debug, info or warn.")
	cmd.Flags().String("logFormat", logging.FormatCommandLine, "Log format, one of text, json or commandline.")
	cmd.Flags().Bool("showSchedulerLogs", false, "Show the log lines of individual admission decisions.")
	cmd.Flags().Float64("evictionPeriod", 0, "Evict terminated requests every this many simulated seconds. Disabled if 0.")
	cmd.Flags().Uint16("metricsPort", 0, "Serve prometheus metrics on this port while simulating. Disabled if 0.")
	for _, name := range []string{"platform", "applications", "trace", "configs"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	return cmd
}

func runSimulations(cmd *cobra.Command, args []string) error {
	// Get command-line arguments.
	platformPath, err := cmd.Flags().GetString("platform")
	if err != nil {
		return err
	}
	applicationsPath, err := cmd.Flags().GetString("applications")
	if err != nil {
		return err
	}
	tracePath, err := cmd.Flags().GetString("trace")
	if err != nil {
		return err
	}
	configPattern, err := cmd.Flags().GetString("configs")
	if err != nil {
		return err
	}
	dump, err := cmd.Flags().GetBool("dump")
	if err != nil {
		return err
	}
	logLevel, err := cmd.Flags().GetString("logLevel")
	if err != nil {
		return err
	}
	logFormat, err := cmd.Flags().GetString("logFormat")
	if err != nil {
		return err
	}
	showSchedulerLogs, err := cmd.Flags().GetBool("showSchedulerLogs")
	if err != nil {
		return err
	}
	evictionPeriod, err := cmd.Flags().GetFloat64("evictionPeriod")
	if err != nil {
		return err
	}
	metricsPort, err := cmd.Flags().GetUint16("metricsPort")
	if err != nil {
		return err
	}

	if err := logging.Configure(logging.Config{Level: logLevel, Format: logFormat}); err != nil {
		return err
	}
	ctx := logctx.Background()
	ctx.Log.Info("Energy-aware scheduler simulator")

	schedulingConfigs, err := simulator.SchedulingConfigsFromPattern(configPattern)
	if err != nil {
		return err
	}
	if len(schedulingConfigs) == 0 {
		return errors.Errorf("no scheduling configs match %s", configPattern)
	}

	m := metrics.New()
	if metricsPort > 0 {
		registry := prometheus.NewRegistry()
		if err := m.Register(registry); err != nil {
			return err
		}
		// Log lines are counted per level alongside the scheduler metrics.
		hook, err := promrus.NewPrometheusHook()
		if err != nil {
			return errors.WithStack(err)
		}
		logrus.AddHook(hook)
		shutdown := serveMetrics(ctx, prometheus.Gatherers{registry, prometheus.DefaultGatherer}, metricsPort)
		defer shutdown()
	}

	results, err := simulator.Simulate(
		ctx,
		afero.NewOsFs(),
		platformPath, applicationsPath, tracePath,
		schedulingConfigs,
		m,
		clock.RealClock{},
		simulator.Options{
			EvictionPeriod:        evictionPeriod,
			SuppressSchedulerLogs: !showSchedulerLogs,
		},
	)
	if err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("simulation failed")
		return err
	}

	out := cmd.OutOrStdout()
	if dump {
		for _, result := range results {
			fmt.Fprintf(out, "== %s\n%s\n", result.Name, result.History)
		}
	}
	writeSummary(out, results)
	return nil
}

// writeSummary renders one row per simulation.
func writeSummary(w io.Writer, results []*simulator.Result) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetHeader([]string{
		"Config",
		"Scheduler",
		"Seen",
		"Accepted",
		"Refused",
		"Energy",
		"Makespan",
		"Wall time",
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, result := range results {
		table.Append([]string{
			result.Name,
			result.Stats.SchedulerName,
			fmt.Sprintf("%d", result.Stats.RequestsSeen),
			fmt.Sprintf("%d", result.Stats.RequestsAccepted),
			fmt.Sprintf("%d", len(result.Refused)),
			fmt.Sprintf("%.6f", result.Stats.TotalEnergy),
			fmt.Sprintf("%.6f", result.Makespan),
			result.Duration.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

// serveMetrics exposes the metrics of gatherer over http until the returned function is called.
func serveMetrics(ctx *logctx.Context, gatherer prometheus.Gatherer, port uint16) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		ctx.Log.Infof("Serving metrics on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WithStacktrace(ctx.Log, err).Error("metrics server failed")
		}
	}()
	return func() {
		shutdownCtx, cancel := logctx.WithTimeout(logctx.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.WithStacktrace(ctx.Log, err).Warn("metrics server did not shut down cleanly")
		}
	}
}
