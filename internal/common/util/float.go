package util

import "math"

// Epsilon is the tolerance used when comparing simulated times and completion ratios.
const Epsilon = 1e-5

// Inf is positive infinity, used for jobs without a deadline.
var Inf = math.Inf(1)

// ApproxEqual returns true if a and b differ by at most Epsilon. Two equal infinities are considered equal.
func ApproxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= Epsilon
}

// ApproxLessOrEqual returns true if a <= b + Epsilon.
func ApproxLessOrEqual(a, b float64) bool {
	if math.IsInf(b, 1) {
		return true
	}
	return a <= b+Epsilon
}

// ApproxLess returns true if a < b - Epsilon, i.e. a is strictly less than b by more than the tolerance.
func ApproxLess(a, b float64) bool {
	if math.IsInf(b, 1) {
		return !math.IsInf(a, 1)
	}
	return a < b-Epsilon
}

// Clamp01 restricts v to the closed interval [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Map applies fn to every element of s.
func Map[T any, U any](s []T, fn func(T) U) []U {
	rv := make([]U, len(s))
	for i, v := range s {
		rv[i] = fn(v)
	}
	return rv
}
