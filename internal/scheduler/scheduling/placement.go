package scheduling

import (
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// placement is a job committed to a mapping. A locked placement is a job already running with rescheduling
// disabled: it keeps exactly its mapping and runs without interruption until it finishes.
type placement struct {
	job     *jobdb.Job
	mapping *internaltypes.CanonicalMapping
	locked  bool
}

func newPlacement(job *jobdb.Job, mapping *internaltypes.CanonicalMapping, reschedule bool) placement {
	return placement{
		job:     job,
		mapping: mapping,
		locked:  !reschedule && job.InProgress(),
	}
}

// place adds a job running on mapping from its current completion ratio to s, starting no earlier than earliest.
// The job runs in every segment with enough spare capacity for mapping or one of its variants, waiting otherwise;
// a segment longer than the remaining time is split so that the job finishes at a segment boundary. Whatever
// remains is appended at the end of the schedule. A locked job uses mapping alone and may not wait. place returns
// the finish time, or false if the mapping does not fit the platform at all or a locked job is blocked.
func place(s *schedule.Schedule, job *jobdb.Job, mapping *internaltypes.CanonicalMapping, earliest float64, locked bool, variants *variantCache) (float64, bool) {
	req := job.Request
	options := []*internaltypes.CanonicalMapping{mapping}
	if !locked {
		options = variants.of(req, mapping)
	}
	cratio := job.Cratio
	if job.Finished() {
		return earliest, true
	}
	if util.ApproxLess(s.Start(), earliest) {
		s.SplitAt(earliest)
	}

	for i := 0; i < s.Len(); i++ {
		segment := s.Segment(i)
		if !util.ApproxLess(earliest, segment.End()) || util.ApproxEqual(segment.Start(), segment.End()) {
			continue
		}
		variant := firstFitting(options, segment.SpareCapacity())
		if variant == nil {
			if locked {
				return 0, false
			}
			continue
		}
		remaining := variant.RemainingTime(cratio)
		if util.ApproxLess(remaining, segment.Duration()) {
			first, second := segment.Split(segment.Start() + remaining)
			s.ReplaceSegment(i, first, second)
			segment = first
		}
		jsm := schedule.NewJobSegmentMapping(req, variant, segment.Start(), cratio, schedule.WithEndTime(segment.End()))
		s.ReplaceSegment(i, segment.WithMember(jsm))
		cratio = jsm.EndCratio
		if jsm.Finished() {
			return jsm.EndTime, true
		}
	}

	variant := firstFitting(options, s.Capacity())
	if variant == nil {
		return 0, false
	}
	start := s.End()
	if util.ApproxLess(start, earliest) {
		s.AppendSegment(schedule.NewSegment(s.Capacity(), start, earliest))
		start = earliest
	}
	jsm := schedule.NewJobSegmentMapping(req, variant, start, cratio, schedule.WithFinished())
	s.AppendSegment(schedule.NewSegment(s.Capacity(), start, jsm.EndTime, jsm))
	return jsm.EndTime, true
}

func firstFitting(options []*internaltypes.CanonicalMapping, available internaltypes.ResourceList) *internaltypes.CanonicalMapping {
	for _, m := range options {
		if m.Demand.FitsWithin(available) {
			return m
		}
	}
	return nil
}

// derive builds a schedule from scratch by placing every placement in order, and reports whether every placed job
// meets its deadline.
func derive(capacity internaltypes.ResourceList, now float64, placements []placement, variants *variantCache) (*schedule.Schedule, bool) {
	s := schedule.New(capacity, now)
	ok := true
	for _, p := range placements {
		finish, placed := place(s, p.job, p.mapping, now, p.locked, variants)
		if !placed || !util.ApproxLessOrEqual(finish, p.job.Request.AbsoluteDeadline()) {
			ok = false
		}
	}
	return s, ok
}

// sortPlacements orders locked placements first, then by absolute deadline, ties broken by request Seq.
func sortPlacements(placements []placement) {
	slices.SortFunc(placements, func(a, b placement) bool {
		if a.locked != b.locked {
			return a.locked
		}
		da, db := a.job.Request.AbsoluteDeadline(), b.job.Request.AbsoluteDeadline()
		if da != db {
			return da < db
		}
		return a.job.Request.Seq < b.job.Request.Seq
	})
}
