package scheduling

import (
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/schedule"
)

// searchState is a node of the bruteforce search tree: a partial schedule and the progress it leaves every job at.
// Slices are never modified after the state is created, so states may share them.
type searchState struct {
	schedule *schedule.Schedule
	// Completion ratio per job, indexed like the job table.
	cratios []float64
	// Mapping each job is locked to, nil if the job may still choose freely.
	locked []*internaltypes.CanonicalMapping
	// End time of the partial schedule.
	time float64
	// Energy spent by the partial schedule.
	spent float64
	// Energy spent in the last segment.
	lastSegmentEnergy float64
	// Lower bound on the energy of any completion of this state.
	bestCase   float64
	unfinished int
	// Insertion order, used as the final tie-break.
	seq int64
}

// before returns true if a should be expanded before b.
func (a searchState) before(b searchState) bool {
	if a.unfinished != b.unfinished {
		return a.unfinished < b.unfinished
	}
	if a.bestCase != b.bestCase {
		return a.bestCase < b.bestCase
	}
	if a.time != b.time {
		return a.time > b.time
	}
	if a.lastSegmentEnergy != b.lastSegmentEnergy {
		return a.lastSegmentEnergy < b.lastSegmentEnergy
	}
	if a.spent != b.spent {
		return a.spent < b.spent
	}
	return a.seq < b.seq
}

// stateQueue is a priority queue of search states, implementing heap.Interface.
type stateQueue []searchState

func (q stateQueue) Len() int { return len(q) }

func (q stateQueue) Less(i, j int) bool {
	return q[i].before(q[j])
}

func (q stateQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *stateQueue) Push(x any) {
	*q = append(*q, x.(searchState))
}

func (q *stateQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = searchState{} // avoid memory leak
	*q = old[0 : n-1]
	return item
}
