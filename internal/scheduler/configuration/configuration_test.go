package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulingConfigValidate(t *testing.T) {
	tests := map[string]struct {
		modify  func(c *SchedulingConfig)
		wantErr bool
	}{
		"default": {
			modify: func(c *SchedulingConfig) {},
		},
		"bruteforce with time limit": {
			modify: func(c *SchedulingConfig) {
				c.Algorithm = BruteforceAlgorithm
				c.TimeLimit = 5 * time.Second
			},
		},
		"lagrangian": {
			modify: func(c *SchedulingConfig) { c.Algorithm = LagrangianAlgorithm },
		},
		"unknown algorithm": {
			modify:  func(c *SchedulingConfig) { c.Algorithm = "random" },
			wantErr: true,
		},
		"missing algorithm": {
			modify:  func(c *SchedulingConfig) { c.Algorithm = "" },
			wantErr: true,
		},
		"tolerance of one": {
			modify:  func(c *SchedulingConfig) { c.EnergyDropTolerance = 1 },
			wantErr: true,
		},
		"negative time limit": {
			modify:  func(c *SchedulingConfig) { c.TimeLimit = -time.Second },
			wantErr: true,
		},
		"lagrangian without iterations": {
			modify: func(c *SchedulingConfig) {
				c.Algorithm = LagrangianAlgorithm
				c.Lagrangian.Iterations = 0
			},
			wantErr: true,
		},
		"lagrangian with unknown optimiser": {
			modify: func(c *SchedulingConfig) {
				c.Algorithm = LagrangianAlgorithm
				c.Lagrangian.Optimiser = "adam"
			},
			wantErr: true,
		},
		"dac ignores lagrangian settings": {
			modify: func(c *SchedulingConfig) { c.Lagrangian.Iterations = 0 },
		},
		"rotations without limit": {
			modify: func(c *SchedulingConfig) {
				c.Rotations = true
				c.MaxRotations = 0
			},
			wantErr: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := DefaultSchedulingConfig()
			tc.modify(&c)
			err := c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSpecValidate(t *testing.T) {
	platform := PlatformSpec{Processors: []ProcessorGroupSpec{{Type: "big", Count: 4}}}
	assert.NoError(t, platform.Validate())
	assert.Error(t, PlatformSpec{}.Validate())
	assert.Error(t, PlatformSpec{Processors: []ProcessorGroupSpec{{Type: "big"}}}.Validate())

	apps := ApplicationsSpec{Applications: []ApplicationSpec{{
		Name:     "A",
		Mappings: []MappingSpec{{Demand: map[string]int{"big": 1}, Time: 4, Energy: 10}},
	}}}
	assert.NoError(t, apps.Validate())
	apps.Applications[0].Mappings[0].Time = 0
	assert.Error(t, apps.Validate())
	assert.Error(t, ApplicationsSpec{Applications: []ApplicationSpec{{Name: "A"}}}.Validate())
}
