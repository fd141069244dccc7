package metrics

const (

	// common prefix for all metric names
	prefix = "energysched_"

	// Prometheus Labels
	schedulerLabel = "scheduler"
	outcomeLabel   = "outcome"
	statusLabel    = "status"

	// Admission outcomes
	accepted = "accepted"
	refused  = "refused"
)
