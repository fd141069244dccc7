package scheduling

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/util"
)

type memoEntry struct {
	cratios []float64
	time    float64
	energy  float64
}

// dominates returns true if e is at least as advanced as o in every job, no later and no more expensive.
func (e memoEntry) dominates(o memoEntry) bool {
	if !util.ApproxLessOrEqual(e.time, o.time) || !util.ApproxLessOrEqual(e.energy, o.energy) {
		return false
	}
	for i, c := range e.cratios {
		if c < o.cratios[i]-util.Epsilon {
			return false
		}
	}
	return true
}

// memoTable records explored states so that states dominated by an earlier one can be pruned.
// Entries are grouped by the set of finished and locked jobs, since only states that agree on those are comparable.
type memoTable struct {
	entries map[string][]memoEntry
	size    int
	maxSize int
	dropped int
}

func newMemoTable(maxSize int) *memoTable {
	return &memoTable{
		entries: make(map[string][]memoEntry),
		maxSize: maxSize,
	}
}

func memoKey(s searchState) string {
	var sb strings.Builder
	for i, c := range s.cratios {
		if i > 0 {
			sb.WriteByte(',')
		}
		switch {
		case c >= 1:
			sb.WriteByte('F')
		case s.locked[i] != nil:
			sb.WriteString(s.locked[i].Id)
		default:
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// visit returns true if s is dominated by a recorded state. Otherwise s is recorded, replacing any entries it
// dominates.
func (m *memoTable) visit(ctx *logctx.Context, s searchState) bool {
	key := memoKey(s)
	candidate := memoEntry{cratios: s.cratios, time: s.time, energy: s.spent}
	existing := m.entries[key]
	for _, e := range existing {
		if e.dominates(candidate) {
			return true
		}
	}
	kept := existing[:0]
	for _, e := range existing {
		if candidate.dominates(e) {
			m.size--
			m.dropped++
			ctx.Log.WithFields(logrus.Fields{
				"time":   e.time,
				"energy": e.energy,
			}).Debug("dominated memo entry dropped")
			continue
		}
		kept = append(kept, e)
	}
	if m.maxSize == 0 || m.size < m.maxSize {
		kept = append(kept, candidate)
		m.size++
	}
	m.entries[key] = kept
	return false
}

func (m *memoTable) Len() int {
	return m.size
}
