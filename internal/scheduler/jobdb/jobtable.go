package jobdb

import (
	"golang.org/x/exp/slices"

	"github.com/armadaproject/energysched/internal/common/schederrors"
)

// JobTable is a snapshot of the jobs to schedule at a given simulated time. Jobs are kept ordered by request Seq.
type JobTable struct {
	Now  float64
	Jobs []*Job
}

func NewJobTable(now float64, jobs ...*Job) *JobTable {
	t := &JobTable{Now: now}
	for _, job := range jobs {
		t.Add(job)
	}
	return t
}

// Copy returns a deep copy of the table. Requests are shared.
func (t *JobTable) Copy() *JobTable {
	jobs := make([]*Job, len(t.Jobs))
	for i, job := range t.Jobs {
		jobs[i] = job.Copy()
	}
	return &JobTable{Now: t.Now, Jobs: jobs}
}

// Add inserts job in Seq order. Adding a second job for the same request panics.
func (t *JobTable) Add(job *Job) {
	i, found := t.search(job.Request.Seq)
	if found {
		schederrors.Invariantf("unique", "job table already contains request %s", job.Request.Id)
	}
	t.Jobs = slices.Insert(t.Jobs, i, job)
}

// Remove deletes the job of the request with the given id, returning true if there was one.
func (t *JobTable) Remove(id string) bool {
	i := slices.IndexFunc(t.Jobs, func(job *Job) bool { return job.Request.Id == id })
	if i < 0 {
		return false
	}
	t.Jobs = slices.Delete(t.Jobs, i, i+1)
	return true
}

func (t *JobTable) Get(id string) (*Job, bool) {
	i := slices.IndexFunc(t.Jobs, func(job *Job) bool { return job.Request.Id == id })
	if i < 0 {
		return nil, false
	}
	return t.Jobs[i], true
}

func (t *JobTable) Len() int {
	return len(t.Jobs)
}

// Unfinished returns the jobs that have not yet reached completion.
func (t *JobTable) Unfinished() []*Job {
	var rv []*Job
	for _, job := range t.Jobs {
		if !job.Finished() {
			rv = append(rv, job)
		}
	}
	return rv
}

// SortedByDeadline returns the jobs ordered by absolute deadline, ties broken by Seq.
func (t *JobTable) SortedByDeadline() []*Job {
	rv := slices.Clone(t.Jobs)
	slices.SortStableFunc(rv, func(a, b *Job) bool {
		return a.Request.AbsoluteDeadline() < b.Request.AbsoluteDeadline()
	})
	return rv
}

func (t *JobTable) search(seq int64) (int, bool) {
	i := 0
	for i < len(t.Jobs) && t.Jobs[i].Request.Seq < seq {
		i++
	}
	return i, i < len(t.Jobs) && t.Jobs[i].Request.Seq == seq
}
