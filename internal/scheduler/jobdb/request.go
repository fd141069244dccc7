package jobdb

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
)

type RequestStatus int

const (
	New RequestStatus = iota
	Accepted
	Refused
	Finished
)

func (s RequestStatus) String() string {
	switch s {
	case New:
		return "new"
	case Accepted:
		return "accepted"
	case Refused:
		return "refused"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("RequestStatus(%d)", int(s))
	}
}

// Terminal returns true for statuses no further transition can leave.
func (s RequestStatus) Terminal() bool {
	return s == Refused || s == Finished
}

// JobRequest is a request to run an application before a deadline.
// Everything except the status is immutable once created; requests are shared by pointer between job tables,
// schedules and the RequestTable.
type JobRequest struct {
	// Unique identifier.
	Id string
	// Position in the order requests were created. Used for all deterministic tie-breaking.
	Seq int64
	// Application name.
	App string
	// Simulated time the request arrived at.
	Arrival float64
	// Deadline relative to Arrival. May be +Inf.
	Deadline float64
	// Pareto front of admissible mappings. Never contains the idle mapping.
	Mappings []*internaltypes.CanonicalMapping
	status   RequestStatus
}

func NewJobRequest(id string, seq int64, app string, arrival, deadline float64, mappings []*internaltypes.CanonicalMapping) *JobRequest {
	return &JobRequest{
		Id:       id,
		Seq:      seq,
		App:      app,
		Arrival:  arrival,
		Deadline: deadline,
		Mappings: mappings,
		status:   New,
	}
}

func (r *JobRequest) Status() RequestStatus {
	return r.status
}

// AbsoluteDeadline is the simulated time by which the request must be finished.
func (r *JobRequest) AbsoluteDeadline() float64 {
	if math.IsInf(r.Deadline, 1) {
		return math.Inf(1)
	}
	return r.Arrival + r.Deadline
}

func (r *JobRequest) HasDeadline() bool {
	return !math.IsInf(r.Deadline, 1)
}

func (r *JobRequest) String() string {
	return fmt.Sprintf("#%d", r.Seq)
}

// transition moves the request to status to.
// Setting the current status again is logged and otherwise ignored; illegal transitions panic.
func (r *JobRequest) transition(ctx *logctx.Context, to RequestStatus) {
	from := r.status
	if from == to {
		ctx.Log.WithFields(logrus.Fields{
			"request": r.Id,
			"status":  to.String(),
		}).Warn("request status already set")
		return
	}
	legal := false
	switch from {
	case New:
		legal = to != Finished
	case Accepted:
		legal = to == Finished
	}
	if !legal {
		schederrors.Invariantf("status", "request %s cannot move from %s to %s", r.Id, from, to)
	}
	r.status = to
}
