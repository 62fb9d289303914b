package common

import "math"

// Epsilon is the magnitude below which a speed counts as zero.
const Epsilon = 1e-6

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func NearZero(v float64) bool {
	return math.Abs(v) < Epsilon
}

// Sign returns -1 for negative v and 1 otherwise, so zero counts as positive.
func Sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
