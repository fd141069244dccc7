package schedule

import (
	"fmt"

	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
)

// JobSegmentMapping is the part of a job run inside one segment: the mapping used, and the time and completion
// ratio at which the job entered and left the segment.
// JobSegmentMappings are immutable.
type JobSegmentMapping struct {
	Request     *jobdb.JobRequest
	Mapping     *internaltypes.CanonicalMapping
	StartTime   float64
	StartCratio float64
	EndTime     float64
	EndCratio   float64
}

type endKind int

const (
	endUnset endKind = iota
	endAtTime
	endAtCratio
)

type derivation struct {
	kind  endKind
	value float64
	count int
}

// Option selects how the end of a JobSegmentMapping is derived. Exactly one must be given.
type Option func(*derivation)

// WithEndTime runs the job until t, or until it finishes if that happens first.
func WithEndTime(t float64) Option {
	return func(d *derivation) {
		d.kind, d.value = endAtTime, t
		d.count++
	}
}

// WithEndCratio runs the job until it reaches completion ratio c.
func WithEndCratio(c float64) Option {
	return func(d *derivation) {
		d.kind, d.value = endAtCratio, c
		d.count++
	}
}

// WithFinished runs the job to completion.
func WithFinished() Option {
	return func(d *derivation) {
		d.kind, d.value = endAtCratio, 1
		d.count++
	}
}

func NewJobSegmentMapping(
	request *jobdb.JobRequest,
	mapping *internaltypes.CanonicalMapping,
	startTime, startCratio float64,
	opts ...Option,
) *JobSegmentMapping {
	d := derivation{}
	for _, opt := range opts {
		opt(&d)
	}
	if d.count != 1 {
		schederrors.Invariantf("derivation", "exactly one end option required for request %s, got %d", request.Id, d.count)
	}
	if startCratio < -util.Epsilon || startCratio > 1+util.Epsilon {
		schederrors.Invariantf("cratio", "start cratio %f of request %s outside [0, 1]", startCratio, request.Id)
	}
	startCratio = util.Clamp01(startCratio)
	jsm := &JobSegmentMapping{
		Request:     request,
		Mapping:     mapping,
		StartTime:   startTime,
		StartCratio: startCratio,
	}
	switch d.kind {
	case endAtTime:
		jsm.deriveFromEndTime(d.value)
	case endAtCratio:
		jsm.deriveFromEndCratio(d.value)
	}
	return jsm
}

func (jsm *JobSegmentMapping) deriveFromEndTime(t float64) {
	window := t - jsm.StartTime
	if window < -util.Epsilon {
		schederrors.Invariantf("window", "end time %f before start time %f for request %s", t, jsm.StartTime, jsm.Request.Id)
	}
	if jsm.Mapping.IsIdle() {
		jsm.EndTime = t
		jsm.EndCratio = jsm.StartCratio
		return
	}
	remaining := jsm.Mapping.RemainingTime(jsm.StartCratio)
	if remaining <= window+util.Epsilon {
		jsm.EndTime = jsm.StartTime + remaining
		jsm.EndCratio = 1
		return
	}
	jsm.EndTime = t
	jsm.EndCratio = jsm.Mapping.Progress(jsm.StartCratio, window)
}

func (jsm *JobSegmentMapping) deriveFromEndCratio(c float64) {
	if jsm.Mapping.IsIdle() {
		schederrors.Invariantf("derivation", "idle mapping of request %s requires an end time", jsm.Request.Id)
	}
	if c < jsm.StartCratio-util.Epsilon || c > 1+util.Epsilon {
		schederrors.Invariantf("cratio", "end cratio %f of request %s outside [%f, 1]", c, jsm.Request.Id, jsm.StartCratio)
	}
	c = util.Clamp01(c)
	if util.ApproxEqual(c, 1) {
		c = 1
	}
	if c < jsm.StartCratio {
		c = jsm.StartCratio
	}
	jsm.EndCratio = c
	jsm.EndTime = jsm.StartTime + (c-jsm.StartCratio)*jsm.Mapping.FullTime
}

func (jsm *JobSegmentMapping) Finished() bool {
	return jsm.EndCratio == 1
}

func (jsm *JobSegmentMapping) Energy() float64 {
	if jsm.Mapping.IsIdle() {
		return 0
	}
	return jsm.Mapping.FullEnergy * (jsm.EndCratio - jsm.StartCratio)
}

func (jsm *JobSegmentMapping) Duration() float64 {
	return jsm.EndTime - jsm.StartTime
}

// Split returns the parts of jsm before and after t. t must lie strictly inside the mapping's window.
// The second part is nil if the job finishes before t.
func (jsm *JobSegmentMapping) Split(t float64) (*JobSegmentMapping, *JobSegmentMapping) {
	if !util.ApproxLess(jsm.StartTime, t) || t >= jsm.EndTime {
		schederrors.Invariantf("split", "split time %f outside (%f, %f) for request %s", t, jsm.StartTime, jsm.EndTime, jsm.Request.Id)
	}
	first := NewJobSegmentMapping(jsm.Request, jsm.Mapping, jsm.StartTime, jsm.StartCratio, WithEndTime(t))
	if first.Finished() {
		return first, nil
	}
	var second *JobSegmentMapping
	if jsm.Mapping.IsIdle() {
		second = NewJobSegmentMapping(jsm.Request, jsm.Mapping, first.EndTime, first.EndCratio, WithEndTime(jsm.EndTime))
	} else {
		second = NewJobSegmentMapping(jsm.Request, jsm.Mapping, first.EndTime, first.EndCratio, WithEndCratio(jsm.EndCratio))
	}
	return first, second
}

func (jsm *JobSegmentMapping) String() string {
	return fmt.Sprintf(
		"%s %s %s [%f, %f) cratio %f -> %f",
		jsm.Request, jsm.Request.App, jsm.Mapping, jsm.StartTime, jsm.EndTime, jsm.StartCratio, jsm.EndCratio,
	)
}
