package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice using gonum.
// The mean of an empty slice is 0.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Sum adds up a slice using gonum
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// Increments returns the first-difference sequence of data, so that
// result[i] = data[i+1] - data[i]. Fewer than two values yield an empty slice.
func Increments(data []float64) []float64 {
	if len(data) < 2 {
		return []float64{}
	}

	increments := make([]float64, len(data)-1)
	for i := range increments {
		increments[i] = data[i+1] - data[i]
	}
	return increments
}

// RoundHalfUp rounds to the nearest whole number, halves going up.
func RoundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// IsFinite reports whether x is neither NaN nor an infinity.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

