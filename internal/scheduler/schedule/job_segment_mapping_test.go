package schedule

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/common/util"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
)

func TestNewJobSegmentMapping(t *testing.T) {
	f := newFixture(t)
	tests := map[string]struct {
		mapping     *internaltypes.CanonicalMapping
		startTime   float64
		startCratio float64
		opt         Option
		endTime     float64
		endCratio   float64
		finished    bool
		energy      float64
	}{
		"partial by time": {
			mapping: f.aLittle, startTime: 0, startCratio: 0, opt: WithEndTime(5),
			endTime: 5, endCratio: 0.625, energy: 3.75,
		},
		"finishes early": {
			mapping: f.aBig, startTime: 2, startCratio: 0.5, opt: WithEndTime(10),
			endTime: 4, endCratio: 1, finished: true, energy: 5,
		},
		"finishes within slack": {
			mapping: f.aBig, startTime: 0, startCratio: 0, opt: WithEndTime(4 - util.Epsilon/2),
			endTime: 4, endCratio: 1, finished: true, energy: 10,
		},
		"by cratio": {
			mapping: f.aBig, startTime: 1, startCratio: 0.25, opt: WithEndCratio(0.75),
			endTime: 3, endCratio: 0.75, energy: 5,
		},
		"finished": {
			mapping: f.aLittle, startTime: 5, startCratio: 0.625, opt: WithFinished(),
			endTime: 8, endCratio: 1, finished: true, energy: 2.25,
		},
		"idle": {
			mapping: internaltypes.IdleMapping, startTime: 1, startCratio: 0.3, opt: WithEndTime(7),
			endTime: 7, endCratio: 0.3, energy: 0,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			jsm := NewJobSegmentMapping(f.reqA, tc.mapping, tc.startTime, tc.startCratio, tc.opt)
			assert.InDelta(t, tc.endTime, jsm.EndTime, 1e-9)
			assert.InDelta(t, tc.endCratio, jsm.EndCratio, 1e-9)
			assert.Equal(t, tc.finished, jsm.Finished())
			assert.InDelta(t, tc.energy, jsm.Energy(), 1e-9)
		})
	}
}

func TestNewJobSegmentMapping_Fatal(t *testing.T) {
	f := newFixture(t)
	tests := map[string]func(){
		"no option": func() { NewJobSegmentMapping(f.reqA, f.aBig, 0, 0) },
		"two options": func() {
			NewJobSegmentMapping(f.reqA, f.aBig, 0, 0, WithEndTime(1), WithFinished())
		},
		"cratio regression": func() {
			NewJobSegmentMapping(f.reqA, f.aBig, 0, 0.5, WithEndCratio(0.25))
		},
		"cratio above one":   func() { NewJobSegmentMapping(f.reqA, f.aBig, 0, 0, WithEndCratio(1.5)) },
		"end before start":   func() { NewJobSegmentMapping(f.reqA, f.aBig, 5, 0, WithEndTime(4)) },
		"idle with cratio":   func() { NewJobSegmentMapping(f.reqA, internaltypes.IdleMapping, 0, 0, WithFinished()) },
		"start cratio above": func() { NewJobSegmentMapping(f.reqA, f.aBig, 0, 2, WithEndTime(1)) },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				assert.True(t, schederrors.IsInvariantViolation(r))
			}()
			fn()
		})
	}
}

func TestJobSegmentMappingSplit(t *testing.T) {
	f := newFixture(t)
	jsm := NewJobSegmentMapping(f.reqA, f.aLittle, 0, 0, WithFinished())

	first, second := jsm.Split(2)
	assert.Equal(t, 0.25, first.EndCratio)
	assert.Equal(t, 2.0, first.EndTime)
	require.NotNil(t, second)
	assert.Equal(t, 2.0, second.StartTime)
	assert.Equal(t, 0.25, second.StartCratio)
	assert.True(t, second.Finished())
	assert.InDelta(t, 8, second.EndTime, 1e-9)
	assert.InDelta(t, jsm.Energy(), first.Energy()+second.Energy(), 1e-9)

	idle := NewJobSegmentMapping(f.reqA, internaltypes.IdleMapping, 0, 0.5, WithEndTime(4))
	first, second = idle.Split(1)
	assert.Equal(t, 1.0, first.EndTime)
	assert.Equal(t, 4.0, second.EndTime)
	assert.Equal(t, 0.5, second.EndCratio)

	// Splitting within the slack of the end finishes the job in the first part.
	whole := NewJobSegmentMapping(f.reqA, f.aBig, 0, 0, WithFinished())
	first, second = whole.Split(4 - 1e-6)
	assert.True(t, first.Finished())
	assert.Nil(t, second)

	assert.Panics(t, func() { jsm.Split(0) })
	assert.Panics(t, func() { jsm.Split(9) })
}

func TestEnergyAdditivityUnderSplits(t *testing.T) {
	f := newFixture(t)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		startCratio := r.Float64() * 0.9
		jsm := NewJobSegmentMapping(f.reqA, f.aLittle, 10, startCratio, WithFinished())
		parts := []*JobSegmentMapping{jsm}
		for j := 0; j < 5; j++ {
			k := r.Intn(len(parts))
			p := parts[k]
			if p.Duration() < 4*util.Epsilon {
				continue
			}
			at := p.StartTime + util.Epsilon*2 + r.Float64()*(p.Duration()-util.Epsilon*4)
			first, second := p.Split(at)
			replacement := []*JobSegmentMapping{first}
			if second != nil {
				replacement = append(replacement, second)
			}
			parts = append(parts[:k], append(replacement, parts[k+1:]...)...)
		}
		energy := 0.0
		for _, p := range parts {
			energy += p.Energy()
		}
		assert.InDelta(t, jsm.Energy(), energy, 1e-9)
		assert.True(t, parts[len(parts)-1].Finished())
	}
}
