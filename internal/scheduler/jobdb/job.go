package jobdb

import (
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
)

// Job is the progress made so far on a request.
type Job struct {
	Request *JobRequest
	// Completion ratio in [0, 1].
	Cratio float64
	// Mapping of the last committed segment the job ran in. Nil before the job has run.
	Mapping *internaltypes.CanonicalMapping
}

func NewJob(request *JobRequest, cratio float64) *Job {
	return &Job{
		Request: request,
		Cratio:  util.Clamp01(cratio),
	}
}

// Advance records that the job reached cratio on mapping. The completion ratio never decreases; a regression is
// logged and the ratio is left unchanged.
func (job *Job) Advance(ctx *logctx.Context, cratio float64, mapping *internaltypes.CanonicalMapping) {
	if cratio < job.Cratio-util.Epsilon {
		ctx.Log.WithFields(logrus.Fields{
			"request": job.Request.Id,
			"from":    job.Cratio,
			"to":      cratio,
		}).Warn("completion ratio regression ignored")
	} else {
		job.Cratio = util.Clamp01(cratio)
		if util.ApproxEqual(job.Cratio, 1) {
			job.Cratio = 1
		}
	}
	if mapping != nil && !mapping.IsIdle() {
		job.Mapping = mapping
	}
}

func (job *Job) Finished() bool {
	return job.Cratio >= 1-util.Epsilon
}

// InProgress returns true if the job has started on a mapping but not yet finished.
func (job *Job) InProgress() bool {
	return job.Mapping != nil && job.Cratio > util.Epsilon && !job.Finished()
}

func (job *Job) Copy() *Job {
	if job == nil {
		return nil
	}
	return &Job{
		Request: job.Request,
		Cratio:  job.Cratio,
		Mapping: job.Mapping,
	}
}
