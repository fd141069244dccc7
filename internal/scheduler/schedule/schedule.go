package schedule

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
)

// Schedule is a gap-free sequence of segments.
type Schedule struct {
	start    float64
	capacity internaltypes.ResourceList
	segments []*Segment
}

// New returns an empty schedule starting at start.
func New(capacity internaltypes.ResourceList, start float64) *Schedule {
	return &Schedule{
		start:    start,
		capacity: capacity,
	}
}

func (s *Schedule) Capacity() internaltypes.ResourceList {
	return s.capacity
}

func (s *Schedule) Start() float64 {
	if len(s.segments) > 0 {
		return s.segments[0].Start()
	}
	return s.start
}

func (s *Schedule) End() float64 {
	if len(s.segments) > 0 {
		return s.segments[len(s.segments)-1].End()
	}
	return s.start
}

func (s *Schedule) Len() int {
	return len(s.segments)
}

func (s *Schedule) Segment(i int) *Segment {
	return s.segments[i]
}

// Segments returns the segments in time order. The returned slice must not be modified.
func (s *Schedule) Segments() []*Segment {
	return s.segments
}

func (s *Schedule) Energy() float64 {
	energy := 0.0
	for _, segment := range s.segments {
		energy += segment.Energy()
	}
	return energy
}

// AppendSegment adds segment at the end of the schedule. The segment must start where the schedule ends.
func (s *Schedule) AppendSegment(segment *Segment) {
	if !util.ApproxEqual(segment.Start(), s.End()) {
		schederrors.Invariantf("contiguous", "segment starting at %f appended to schedule ending at %f", segment.Start(), s.End())
	}
	s.segments = append(s.segments, segment)
}

// InsertSegment inserts segment at index i. Contiguity is checked by Verify.
func (s *Schedule) InsertSegment(i int, segment *Segment) {
	s.segments = slices.Insert(s.segments, i, segment)
}

// RemoveSegment removes the segment at index i. Contiguity is checked by Verify.
func (s *Schedule) RemoveSegment(i int) {
	s.segments = slices.Delete(s.segments, i, i+1)
}

// ReplaceSegment replaces the segment at index i with replacements, which must cover the same window.
func (s *Schedule) ReplaceSegment(i int, replacements ...*Segment) {
	old := s.segments[i]
	if len(replacements) == 0 {
		schederrors.Invariantf("contiguous", "segment %d replaced by nothing", i)
	}
	at := old.Start()
	for _, r := range replacements {
		if !util.ApproxEqual(r.Start(), at) {
			schederrors.Invariantf("contiguous", "replacement segment starts at %f, expected %f", r.Start(), at)
		}
		at = r.End()
	}
	if !util.ApproxEqual(at, old.End()) {
		schederrors.Invariantf("contiguous", "replacement segments end at %f, expected %f", at, old.End())
	}
	segments := make([]*Segment, 0, len(s.segments)+len(replacements)-1)
	segments = append(segments, s.segments[:i]...)
	segments = append(segments, replacements...)
	segments = append(segments, s.segments[i+1:]...)
	s.segments = segments
}

// SplitAt splits the segment containing t so that a segment boundary exists at t, returning the index of the
// segment starting at t. If t is at or after the end of the schedule, Len() is returned.
func (s *Schedule) SplitAt(t float64) int {
	for i, segment := range s.segments {
		if util.ApproxEqual(segment.Start(), t) {
			return i
		}
		if util.ApproxLess(segment.Start(), t) && util.ApproxLess(t, segment.End()) {
			first, second := segment.Split(t)
			s.ReplaceSegment(i, first, second)
			return i + 1
		}
	}
	return len(s.segments)
}

// Copy returns a schedule that can be modified independently of s. Segments are immutable and therefore shared.
func (s *Schedule) Copy() *Schedule {
	return &Schedule{
		start:    s.start,
		capacity: s.capacity,
		segments: slices.Clone(s.segments),
	}
}

// Verify checks contiguity, per-segment windows and capacity. Violations indicate a bug, so Verify panics with all
// violations found.
func (s *Schedule) Verify() {
	var result *multierror.Error
	at := s.Start()
	for i, segment := range s.segments {
		if !util.ApproxEqual(segment.Start(), at) {
			result = multierror.Append(result, &schederrors.ErrInvariantViolation{
				Invariant: "contiguous",
				Message:   fmt.Sprintf("segment %d starts at %f, expected %f", i, segment.Start(), at),
			})
		}
		if segment.End() < segment.Start()-util.Epsilon {
			result = multierror.Append(result, &schederrors.ErrInvariantViolation{
				Invariant: "window",
				Message:   fmt.Sprintf("segment %d ends at %f before it starts at %f", i, segment.End(), segment.Start()),
			})
		}
		if shortfall, short := segment.Usage().ShortfallAgainst(s.capacity); short {
			result = multierror.Append(result, &schederrors.ErrInvariantViolation{
				Invariant: "capacity",
				Message:   fmt.Sprintf("segment %d: %s", i, shortfall),
			})
		}
		for _, jsm := range segment.Members() {
			if !util.ApproxEqual(jsm.StartTime, segment.Start()) || !util.ApproxEqual(jsm.EndTime, segment.End()) {
				result = multierror.Append(result, &schederrors.ErrInvariantViolation{
					Invariant: "window",
					Message:   fmt.Sprintf("request %s runs [%f, %f) in segment %d", jsm.Request.Id, jsm.StartTime, jsm.EndTime, i),
				})
			}
		}
		at = segment.End()
	}
	if err := result.ErrorOrNil(); err != nil {
		panic(errors.WithStack(err))
	}
}

// RequestMappings is the sequence of segment mappings of one request.
type RequestMappings struct {
	Request  *jobdb.JobRequest
	Mappings []*JobSegmentMapping
}

// Last returns the last mapping of the request.
func (rm RequestMappings) Last() *JobSegmentMapping {
	return rm.Mappings[len(rm.Mappings)-1]
}

// PerRequests returns the mappings of every request in the schedule, ordered by request Seq.
func (s *Schedule) PerRequests() []RequestMappings {
	index := make(map[string]int)
	var rv []RequestMappings
	for _, segment := range s.segments {
		for _, jsm := range segment.Members() {
			i, ok := index[jsm.Request.Id]
			if !ok {
				i = len(rv)
				index[jsm.Request.Id] = i
				rv = append(rv, RequestMappings{Request: jsm.Request})
			}
			rv[i].Mappings = append(rv[i].Mappings, jsm)
		}
	}
	slices.SortFunc(rv, func(a, b RequestMappings) bool {
		return a.Request.Seq < b.Request.Seq
	})
	return rv
}

// FinishTime returns the time at which the request finishes, and false if it doesn't finish in this schedule.
func (s *Schedule) FinishTime(requestId string) (float64, bool) {
	for _, segment := range s.segments {
		if jsm, ok := segment.Member(requestId); ok && jsm.Finished() {
			return jsm.EndTime, true
		}
	}
	return 0, false
}

// AllFinished returns true if every given request finishes in this schedule.
func (s *Schedule) AllFinished(requests []*jobdb.JobRequest) bool {
	for _, req := range requests {
		if _, ok := s.FinishTime(req.Id); !ok {
			return false
		}
	}
	return true
}

// DeadlinesMet returns true if every request finishing in this schedule does so by its absolute deadline.
func (s *Schedule) DeadlinesMet() bool {
	for _, rm := range s.PerRequests() {
		last := rm.Last()
		if last.Finished() && !util.ApproxLessOrEqual(last.EndTime, rm.Request.AbsoluteDeadline()) {
			return false
		}
	}
	return true
}
