package orbit

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/armadaproject/energysched/internal/common/schederrors"
)

// Assignment maps each task of an application to a processor index.
type Assignment []int

func (a Assignment) key() string {
	return fmt.Sprint([]int(a))
}

// Generator yields the elements of an orbit one at a time. The first element is the assignment the orbit was
// requested for.
type Generator interface {
	Next() (Assignment, bool)
}

// GroupAction computes orbits of assignments under a symmetry group.
type GroupAction interface {
	Orbit(assignment Assignment) Generator
}

// PermutationGroup is the group generated by a set of permutations of processor indices, acting on assignments by
// relabelling processors.
type PermutationGroup struct {
	numProcessors int
	generators    [][]int
}

func NewPermutationGroup(numProcessors int, generators [][]int) (*PermutationGroup, error) {
	for _, g := range generators {
		if len(g) != numProcessors {
			return nil, errors.WithStack(&schederrors.ErrInvalidArgument{
				Name:    "generators",
				Value:   g,
				Message: fmt.Sprintf("expected a permutation of %d processors", numProcessors),
			})
		}
	}
	return &PermutationGroup{
		numProcessors: numProcessors,
		generators:    generators,
	}, nil
}

// Orbit enumerates the orbit breadth-first from assignment.
func (g *PermutationGroup) Orbit(assignment Assignment) Generator {
	start := append(Assignment(nil), assignment...)
	return &bfsGenerator{
		group:   g,
		queue:   []Assignment{start},
		visited: map[string]bool{start.key(): true},
	}
}

type bfsGenerator struct {
	group   *PermutationGroup
	queue   []Assignment
	visited map[string]bool
}

func (it *bfsGenerator) Next() (Assignment, bool) {
	if len(it.queue) == 0 {
		return nil, false
	}
	current := it.queue[0]
	it.queue = it.queue[1:]
	for _, p := range it.group.generators {
		image := make(Assignment, len(current))
		for i, proc := range current {
			image[i] = p[proc]
		}
		if k := image.key(); !it.visited[k] {
			it.visited[k] = true
			it.queue = append(it.queue, image)
		}
	}
	return current, true
}
