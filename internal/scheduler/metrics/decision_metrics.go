package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	schedulerLabels           = []string{schedulerLabel}
	schedulerAndOutcomeLabels = []string{schedulerLabel, outcomeLabel}
)

// decisionMetrics records one observation per admission decision.
type decisionMetrics struct {
	requests           *prometheus.CounterVec
	schedulingDuration *prometheus.HistogramVec
	timedOut           *prometheus.CounterVec
}

func newDecisionMetrics() *decisionMetrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "requests_total",
			Help: "Number of requests decided, by outcome",
		},
		schedulerAndOutcomeLabels,
	)

	schedulingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "scheduling_duration_seconds",
			Help:    "Wall-clock time taken to compute a schedule",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 12),
		},
		schedulerLabels,
	)

	timedOut := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "scheduling_time_limit_exceeded_total",
			Help: "Number of scheduling calls that ran out of time before finishing their search",
		},
		schedulerLabels,
	)

	return &decisionMetrics{
		requests:           requests,
		schedulingDuration: schedulingDuration,
		timedOut:           timedOut,
	}
}

// ReportDecision records the outcome of admitting one request with the given scheduler.
func (m *decisionMetrics) ReportDecision(scheduler string, admitted bool, withinTimeLimit bool, duration time.Duration) {
	outcome := refused
	if admitted {
		outcome = accepted
	}
	m.requests.WithLabelValues(scheduler, outcome).Inc()
	m.schedulingDuration.WithLabelValues(scheduler).Observe(duration.Seconds())
	if !withinTimeLimit {
		m.timedOut.WithLabelValues(scheduler).Inc()
	}
}

func (m *decisionMetrics) describe(ch chan<- *prometheus.Desc) {
	m.requests.Describe(ch)
	m.schedulingDuration.Describe(ch)
	m.timedOut.Describe(ch)
}

func (m *decisionMetrics) collect(ch chan<- prometheus.Metric) {
	m.requests.Collect(ch)
	m.schedulingDuration.Collect(ch)
	m.timedOut.Collect(ch)
}
