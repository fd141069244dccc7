package schedule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
)

type fixture struct {
	capacity internaltypes.ResourceList
	aBig     *internaltypes.CanonicalMapping
	aLittle  *internaltypes.CanonicalMapping
	bBig     *internaltypes.CanonicalMapping
	reqA     *jobdb.JobRequest
	reqB     *jobdb.JobRequest
}

func newFixture(t *testing.T) *fixture {
	factory, err := internaltypes.MakeResourceListFactory([]string{"big", "little"})
	require.NoError(t, err)
	mapping := func(id string, big, little int64, time, energy float64) *internaltypes.CanonicalMapping {
		m, err := internaltypes.NewCanonicalMapping(id, factory.FromSlice([]int64{big, little}), time, energy, nil)
		require.NoError(t, err)
		return m
	}
	f := &fixture{
		capacity: factory.FromSlice([]int64{4, 4}),
		aBig:     mapping("A/0", 1, 0, 4, 10),
		aLittle:  mapping("A/1", 0, 2, 8, 6),
		bBig:     mapping("B/0", 2, 0, 5, 12),
	}
	f.reqA = jobdb.NewJobRequest("a", 1, "A", 0, 10, []*internaltypes.CanonicalMapping{f.aBig, f.aLittle})
	f.reqB = jobdb.NewJobRequest("b", 2, "B", 0, 6, []*internaltypes.CanonicalMapping{f.bBig})
	return f
}

// workedExample is B on big until 5 and A on little until 8.
func (f *fixture) workedExample() *Schedule {
	s := New(f.capacity, 0)
	s.AppendSegment(NewSegment(f.capacity, 0, 5,
		NewJobSegmentMapping(f.reqB, f.bBig, 0, 0, WithEndTime(5)),
		NewJobSegmentMapping(f.reqA, f.aLittle, 0, 0, WithEndTime(5)),
	))
	s.AppendSegment(NewSegment(f.capacity, 5, 8,
		NewJobSegmentMapping(f.reqA, f.aLittle, 5, 0.625, WithFinished()),
	))
	return s
}
