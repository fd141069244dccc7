package orbit

import (
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/pkg/errors"

	"github.com/armadaproject/energysched/internal/common/schederrors"
)

type entryKey struct {
	graph      string
	assignment string
}

// Manager caches orbit entries per (graph, assignment) pair, keeping at most a fixed number alive.
// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	action GroupAction
	cache  *simplelru.LRU
	// Cached keys per graph, so that all entries of a graph can be evicted at once.
	byGraph map[string]map[entryKey]bool
}

func NewManager(action GroupAction, cacheSize int) (*Manager, error) {
	if action == nil {
		return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
			Name:    "action",
			Value:   action,
			Message: "action must be non-nil",
		})
	}
	m := &Manager{
		action:  action,
		byGraph: make(map[string]map[entryKey]bool),
	}
	cache, err := simplelru.NewLRU(cacheSize, m.onEvict)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	m.cache = cache
	return m, nil
}

// onEvict is called by the cache with m.mu held.
func (m *Manager) onEvict(key interface{}, _ interface{}) {
	k := key.(entryKey)
	keys := m.byGraph[k.graph]
	delete(keys, k)
	if len(keys) == 0 {
		delete(m.byGraph, k.graph)
	}
}

// Lookup returns the orbit entry of assignment for the given graph, creating it if necessary.
func (m *Manager) Lookup(graph string, assignment Assignment) *Entry {
	k := entryKey{graph: graph, assignment: assignment.key()}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache.Get(k); ok {
		return v.(*Entry)
	}
	entry := NewEntry(m.action.Orbit(assignment))
	m.cache.Add(k, entry)
	keys, ok := m.byGraph[graph]
	if !ok {
		keys = make(map[entryKey]bool)
		m.byGraph[graph] = keys
	}
	keys[k] = true
	return entry
}

// EvictGraph drops every cached entry of graph.
func (m *Manager) EvictGraph(graph string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.byGraph[graph] {
		m.cache.Remove(k)
	}
	delete(m.byGraph, graph)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
