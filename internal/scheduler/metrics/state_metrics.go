package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
)

var allStatuses = []jobdb.RequestStatus{
	jobdb.New,
	jobdb.Accepted,
	jobdb.Refused,
	jobdb.Finished,
}

// stateMetrics are gauges describing the current state of a resource manager.
type stateMetrics struct {
	committedEnergy  *prometheus.GaugeVec
	activeJobs       *prometheus.GaugeVec
	requestsByStatus *prometheus.GaugeVec
	simulatedTime    *prometheus.GaugeVec
	allMetrics       []*prometheus.GaugeVec
}

func newStateMetrics() *stateMetrics {
	committedEnergy := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "committed_energy",
			Help: "Energy spent so far plus energy of the active schedule",
		},
		schedulerLabels,
	)
	activeJobs := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "active_jobs",
			Help: "Number of accepted jobs that have not finished",
		},
		schedulerLabels,
	)
	requestsByStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "stored_requests",
			Help: "Number of stored requests by status",
		},
		[]string{schedulerLabel, statusLabel},
	)
	simulatedTime := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "simulated_time_seconds",
			Help: "Current simulated time",
		},
		schedulerLabels,
	)
	return &stateMetrics{
		committedEnergy:  committedEnergy,
		activeJobs:       activeJobs,
		requestsByStatus: requestsByStatus,
		simulatedTime:    simulatedTime,
		allMetrics:       []*prometheus.GaugeVec{committedEnergy, activeJobs, requestsByStatus, simulatedTime},
	}
}

// ReportState sets the state gauges of the given scheduler.
func (m *stateMetrics) ReportState(scheduler string, now, committedEnergy float64, activeJobs int, requestsByStatus map[jobdb.RequestStatus]int) {
	m.simulatedTime.WithLabelValues(scheduler).Set(now)
	m.committedEnergy.WithLabelValues(scheduler).Set(committedEnergy)
	m.activeJobs.WithLabelValues(scheduler).Set(float64(activeJobs))
	for _, status := range allStatuses {
		m.requestsByStatus.WithLabelValues(scheduler, status.String()).Set(float64(requestsByStatus[status]))
	}
}

// Forget removes every series of the given scheduler.
func (m *stateMetrics) Forget(scheduler string) {
	m.simulatedTime.DeleteLabelValues(scheduler)
	m.committedEnergy.DeleteLabelValues(scheduler)
	m.activeJobs.DeleteLabelValues(scheduler)
	for _, status := range allStatuses {
		m.requestsByStatus.DeleteLabelValues(scheduler, status.String())
	}
}

func (m *stateMetrics) describe(ch chan<- *prometheus.Desc) {
	for _, metric := range m.allMetrics {
		metric.Describe(ch)
	}
}

func (m *stateMetrics) collect(ch chan<- prometheus.Metric) {
	for _, metric := range m.allMetrics {
		metric.Collect(ch)
	}
}
