package simulator

import (
	"container/heap"
	"math"
)

// Event happens at a point in simulated time.
type Event struct {
	time float64
	// Assigned in push order; breaks ties between events at the same time.
	sequenceNumber int
	// One of arrivalEvent or advanceEvent.
	payload any
}

// arrivalEvent is a request from the trace arriving at the resource manager.
type arrivalEvent struct {
	arrival Arrival
}

// advanceEvent moves simulated time forward without submitting anything. Used to commit segments and evict
// terminated requests between arrivals.
type advanceEvent struct{}

// EventQueue yields events in order of time. Events pushed for the same time come out in push order.
type EventQueue struct {
	events eventHeap
	pushed int
	latest float64
}

func (q *EventQueue) Len() int { return len(q.events) }

// Latest returns the largest time pushed so far, or zero if nothing has been pushed.
func (q *EventQueue) Latest() float64 { return q.latest }

func (q *EventQueue) Push(time float64, payload any) {
	heap.Push(&q.events, Event{time: time, sequenceNumber: q.pushed, payload: payload})
	q.pushed++
	q.latest = math.Max(q.latest, time)
}

// Pop removes the earliest event. The second return value is false if the queue is empty.
func (q *EventQueue) Pop() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.events).(Event), true
}

type eventHeap []Event

func (h eventHeap) Len() int      { return len(h) }
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].sequenceNumber < h[j].sequenceNumber
}

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	n := len(*h) - 1
	event := (*h)[n]
	(*h)[n] = Event{}
	*h = (*h)[:n]
	return event
}
