package scheduling

import (
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
	"github.com/armadaproject/energysched/internal/scheduler/jobdb"
	"github.com/armadaproject/energysched/internal/scheduler/orbit"
)

// optionSource produces the mappings a job may use, including symmetry-equivalent variants when rotations are
// enabled.
type optionSource struct {
	platform     *internaltypes.StaticPlatform
	orbits       *orbit.Manager
	rotations    bool
	maxRotations int
}

func newOptionSource(platform *internaltypes.StaticPlatform, orbits *orbit.Manager, rotations bool, maxRotations int) *optionSource {
	return &optionSource{
		platform:     platform,
		orbits:       orbits,
		rotations:    rotations,
		maxRotations: maxRotations,
	}
}

// variantCache memoises variants for the duration of one scheduling call, so that the same variant is represented
// by the same pointer throughout.
type variantCache struct {
	source   *optionSource
	variants map[*internaltypes.CanonicalMapping][]*internaltypes.CanonicalMapping
}

func (o *optionSource) newCache() *variantCache {
	return &variantCache{
		source:   o,
		variants: make(map[*internaltypes.CanonicalMapping][]*internaltypes.CanonicalMapping),
	}
}

// of returns m followed by its variants with distinct demand. Without rotations only m is returned.
func (c *variantCache) of(req *jobdb.JobRequest, m *internaltypes.CanonicalMapping) []*internaltypes.CanonicalMapping {
	if m.IsIdle() || c.source == nil || !c.source.rotations || len(m.Assignment) == 0 {
		return []*internaltypes.CanonicalMapping{m}
	}
	if rv, ok := c.variants[m]; ok {
		return rv
	}
	rv := []*internaltypes.CanonicalMapping{m}
	cursor := c.source.orbits.Lookup(req.App, orbit.Assignment(m.Assignment)).NewCursor()
	// The first element of an orbit is the assignment itself.
	cursor.Next()
	for n := 1; n < c.source.maxRotations; n++ {
		a, ok := cursor.Next()
		if !ok {
			break
		}
		variant := m.WithAssignment(c.source.platform, a, n)
		duplicate := false
		for _, existing := range rv {
			if existing.Demand.Equal(variant.Demand) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			rv = append(rv, variant)
		}
	}
	c.variants[m] = rv
	return rv
}

// candidates returns the mappings job may be scheduled on next. With rescheduling disabled a job that has already
// made progress is restricted to its current mapping.
func candidates(job *jobdb.Job, reschedule bool) []*internaltypes.CanonicalMapping {
	if !reschedule && job.InProgress() {
		return []*internaltypes.CanonicalMapping{job.Mapping}
	}
	return job.Request.Mappings
}
