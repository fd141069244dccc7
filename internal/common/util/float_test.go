package util

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproxComparisons(t *testing.T) {
	tests := map[string]struct {
		a, b         float64
		equal        bool
		lessOrEqual  bool
		strictlyLess bool
	}{
		"equal":                {a: 1, b: 1, equal: true, lessOrEqual: true},
		"within epsilon above": {a: 1 + Epsilon/2, b: 1, equal: true, lessOrEqual: true},
		"within epsilon below": {a: 1 - Epsilon/2, b: 1, equal: true, lessOrEqual: true},
		"clearly less":         {a: 0.5, b: 1, lessOrEqual: true, strictlyLess: true},
		"clearly greater":      {a: 2, b: 1},
		"finite vs infinity":   {a: 10, b: Inf, lessOrEqual: true, strictlyLess: true},
		"infinity vs infinity": {a: Inf, b: Inf, equal: true, lessOrEqual: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.equal, ApproxEqual(tc.a, tc.b))
			assert.Equal(t, tc.lessOrEqual, ApproxLessOrEqual(tc.a, tc.b))
			assert.Equal(t, tc.strictlyLess, ApproxLess(tc.a, tc.b))
		})
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.1))
	assert.Equal(t, 0.3, Clamp01(0.3))
	assert.Equal(t, 1.0, Clamp01(1.2))
	assert.True(t, math.IsInf(Inf, 1))
}

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, strconv.Itoa))
	assert.Equal(t, []string{}, Map([]int{}, strconv.Itoa))
}
