package schedule

import (
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
)

// Segment is a time window [Start, End) during which the set of running jobs and their mappings is constant.
// Members are ordered by request Seq and share the segment's window; a member may finish at most Epsilon early.
// Segments are immutable; operations return new segments.
type Segment struct {
	start    float64
	end      float64
	capacity internaltypes.ResourceList
	members  []*JobSegmentMapping
	usage    internaltypes.ResourceList
}

// NewSegment creates a segment, panicking if members don't share the window, a request appears twice, or the
// members' combined demand exceeds capacity.
func NewSegment(capacity internaltypes.ResourceList, start, end float64, members ...*JobSegmentMapping) *Segment {
	if end < start-util.Epsilon {
		schederrors.Invariantf("window", "segment end %f before start %f", end, start)
	}
	s := &Segment{
		start:    start,
		end:      end,
		capacity: capacity,
		members:  make([]*JobSegmentMapping, 0, len(members)),
		usage:    capacity.Factory().MakeAllZero(),
	}
	for _, jsm := range members {
		s.add(jsm)
	}
	return s
}

func (s *Segment) add(jsm *JobSegmentMapping) {
	if !util.ApproxEqual(jsm.StartTime, s.start) {
		schederrors.Invariantf("window", "request %s starts at %f in segment [%f, %f)", jsm.Request.Id, jsm.StartTime, s.start, s.end)
	}
	if jsm.Finished() {
		if !util.ApproxLessOrEqual(jsm.EndTime, s.end) || !util.ApproxLessOrEqual(s.end, jsm.EndTime) {
			schederrors.Invariantf("window", "request %s finishes at %f in segment [%f, %f)", jsm.Request.Id, jsm.EndTime, s.start, s.end)
		}
	} else if !util.ApproxEqual(jsm.EndTime, s.end) {
		schederrors.Invariantf("window", "request %s ends at %f in segment [%f, %f)", jsm.Request.Id, jsm.EndTime, s.start, s.end)
	}
	i := 0
	for i < len(s.members) && s.members[i].Request.Seq < jsm.Request.Seq {
		i++
	}
	if i < len(s.members) && s.members[i].Request.Seq == jsm.Request.Seq {
		schederrors.Invariantf("unique", "request %s appears twice in segment [%f, %f)", jsm.Request.Id, s.start, s.end)
	}
	usage := s.usage
	if !jsm.Mapping.IsIdle() {
		usage = usage.Add(jsm.Mapping.Demand)
	}
	if shortfall, short := usage.ShortfallAgainst(s.capacity); short {
		schederrors.Invariantf("capacity", "segment [%f, %f): %s", s.start, s.end, shortfall)
	}
	s.usage = usage
	s.members = slices.Insert(s.members, i, jsm)
}

// WithMember returns a copy of s with jsm added.
func (s *Segment) WithMember(jsm *JobSegmentMapping) *Segment {
	rv := s.copy()
	rv.add(jsm)
	return rv
}

// WithoutMember returns a copy of s without the member for the given request.
func (s *Segment) WithoutMember(requestId string) *Segment {
	members := make([]*JobSegmentMapping, 0, len(s.members))
	for _, jsm := range s.members {
		if jsm.Request.Id != requestId {
			members = append(members, jsm)
		}
	}
	return NewSegment(s.capacity, s.start, s.end, members...)
}

func (s *Segment) copy() *Segment {
	return &Segment{
		start:    s.start,
		end:      s.end,
		capacity: s.capacity,
		members:  slices.Clone(s.members),
		usage:    s.usage,
	}
}

func (s *Segment) Start() float64 {
	return s.start
}

func (s *Segment) End() float64 {
	return s.end
}

func (s *Segment) Duration() float64 {
	return s.end - s.start
}

func (s *Segment) Capacity() internaltypes.ResourceList {
	return s.capacity
}

// Members returns the members ordered by request Seq. The returned slice must not be modified.
func (s *Segment) Members() []*JobSegmentMapping {
	return s.members
}

func (s *Segment) Member(requestId string) (*JobSegmentMapping, bool) {
	for _, jsm := range s.members {
		if jsm.Request.Id == requestId {
			return jsm, true
		}
	}
	return nil, false
}

func (s *Segment) Len() int {
	return len(s.members)
}

// Usage is the combined demand of all non-idle members.
func (s *Segment) Usage() internaltypes.ResourceList {
	return s.usage
}

func (s *Segment) SpareCapacity() internaltypes.ResourceList {
	return s.capacity.Subtract(s.usage)
}

// Finished returns true if every member finishes in this segment.
func (s *Segment) Finished() bool {
	for _, jsm := range s.members {
		if !jsm.Finished() {
			return false
		}
	}
	return true
}

func (s *Segment) Energy() float64 {
	energy := 0.0
	for _, jsm := range s.members {
		energy += jsm.Energy()
	}
	return energy
}

// Split divides s at t, which must lie strictly inside the window. Members finishing before t are absent from the
// second segment.
func (s *Segment) Split(t float64) (*Segment, *Segment) {
	if !util.ApproxLess(s.start, t) || !util.ApproxLess(t, s.end) {
		schederrors.Invariantf("split", "split time %f outside segment (%f, %f)", t, s.start, s.end)
	}
	firstMembers := make([]*JobSegmentMapping, 0, len(s.members))
	secondMembers := make([]*JobSegmentMapping, 0, len(s.members))
	for _, jsm := range s.members {
		first, second := jsm.Split(t)
		firstMembers = append(firstMembers, first)
		if second != nil {
			secondMembers = append(secondMembers, second)
		}
	}
	return NewSegment(s.capacity, s.start, t, firstMembers...), NewSegment(s.capacity, t, s.end, secondMembers...)
}
