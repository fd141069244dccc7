package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the top level scheduler metrics. A single instance may be shared by several resource managers, which
// are told apart by the scheduler label.
type Metrics struct {
	*decisionMetrics
	*stateMetrics
}

func New() *Metrics {
	return &Metrics{
		decisionMetrics: newDecisionMetrics(),
		stateMetrics:    newStateMetrics(),
	}
}

// Register registers m with registerer.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	return errors.WithStack(registerer.Register(m))
}

// Describe is necessary to implement the prometheus.Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.decisionMetrics.describe(ch)
	m.stateMetrics.describe(ch)
}

// Collect is necessary to implement the prometheus.Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.decisionMetrics.collect(ch)
	m.stateMetrics.collect(ch)
}
