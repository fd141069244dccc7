package orbit

import (
	"sync"

	"github.com/armadaproject/energysched/internal/common/schederrors"
)

// Entry is the lazily enumerated orbit of one assignment. Elements are generated on demand and cached, so every
// cursor sees the same sequence. Entry is safe for concurrent use.
type Entry struct {
	mu        sync.Mutex
	generator Generator
	cache     []Assignment
	exhausted bool
}

func NewEntry(generator Generator) *Entry {
	return &Entry{generator: generator}
}

// Get returns element i of the orbit and false if the orbit has fewer than i+1 elements.
// Only the next ungenerated element may be requested; skipping ahead panics.
func (e *Entry) Get(i int) (Assignment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < len(e.cache) {
		return e.cache[i], true
	}
	if i > len(e.cache) {
		schederrors.Invariantf("orbit", "element %d requested but only %d generated", i, len(e.cache))
	}
	if e.exhausted {
		return nil, false
	}
	a, ok := e.generator.Next()
	if !ok {
		e.exhausted = true
		return nil, false
	}
	e.cache = append(e.cache, a)
	return a, true
}

// Len returns the number of elements generated so far.
func (e *Entry) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// Exhausted returns true once the whole orbit has been generated.
func (e *Entry) Exhausted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exhausted
}

func (e *Entry) NewCursor() *Cursor {
	return &Cursor{entry: e}
}

// Cursor iterates over an orbit in index order. A cursor must not be shared between goroutines.
type Cursor struct {
	entry *Entry
	next  int
}

func (c *Cursor) Next() (Assignment, bool) {
	a, ok := c.entry.Get(c.next)
	if ok {
		c.next++
	}
	return a, ok
}
