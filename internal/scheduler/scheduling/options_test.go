package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/energysched/internal/scheduler/configuration"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
)

// clusterPlatform has two clusters of two processors each. The clusters are interchangeable, as are the two
// processors of c0.
func clusterPlatform(t *testing.T) (*internaltypes.StaticPlatform, *orbit.Manager) {
	platform, err := internaltypes.NewStaticPlatform(configuration.PlatformSpec{
		Name: "clusters",
		Processors: []configuration.ProcessorGroupSpec{
			{Type: "c0", Count: 2},
			{Type: "c1", Count: 2},
		},
		Symmetries: [][]int{{2, 3, 0, 1}, {1, 0, 2, 3}},
	})
	require.NoError(t, err)
	group, err := orbit.NewPermutationGroup(platform.NumProcessors(), platform.Symmetries())
	require.NoError(t, err)
	orbits, err := orbit.NewManager(group, 16)
	require.NoError(t, err)
	return platform, orbits
}

func TestVariantCache(t *testing.T) {
	platform, orbits := clusterPlatform(t)
	demand, err := platform.DemandOf([]int{0})
	require.NoError(t, err)
	m, err := internaltypes.NewCanonicalMapping("X/0", demand, 4, 8, []int{0})
	require.NoError(t, err)
	req := jobdb.NewJobRequest("x", 1, "X", 0, 10, []*internaltypes.CanonicalMapping{m})

	tests := map[string]struct {
		rotations    bool
		maxRotations int
		expectedIds  []string
	}{
		"rotations disabled": {
			rotations:   false,
			expectedIds: []string{"X/0"},
		},
		// The orbit of {0} is 0, 2, 1, 3; processor 1 has the same type as processor 0.
		"variants with a new demand": {
			rotations:    true,
			maxRotations: 16,
			expectedIds:  []string{"X/0", "X/0@rot1"},
		},
		"bounded by max rotations": {
			rotations:    true,
			maxRotations: 1,
			expectedIds:  []string{"X/0"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cache := newOptionSource(platform, orbits, tc.rotations, tc.maxRotations).newCache()
			variants := cache.of(req, m)
			var ids []string
			for _, v := range variants {
				ids = append(ids, v.Id)
			}
			assert.Equal(t, tc.expectedIds, ids)
			assert.Same(t, m, variants[0])
			again := cache.of(req, m)
			for i := range variants {
				assert.Same(t, variants[i], again[i])
			}
		})
	}
}

func TestVariantCache_Idle(t *testing.T) {
	platform, orbits := clusterPlatform(t)
	cache := newOptionSource(platform, orbits, true, 16).newCache()
	assert.Equal(t, []*internaltypes.CanonicalMapping{internaltypes.IdleMapping}, cache.of(nil, internaltypes.IdleMapping))
}

func TestCandidates(t *testing.T) {
	f := newFixture(t)
	fresh := jobdb.NewJob(f.reqA, 0)
	running := jobdb.NewJob(f.reqA, 0.5)
	running.Mapping = f.aLittle

	assert.Equal(t, f.reqA.Mappings, candidates(fresh, false))
	assert.Equal(t, f.reqA.Mappings, candidates(running, true))
	assert.Equal(t, []*internaltypes.CanonicalMapping{f.aLittle}, candidates(running, false))
}
