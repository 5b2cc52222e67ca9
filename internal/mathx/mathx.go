// Package mathx holds the small numeric helpers shared by the simulation
// models. Rounding goes through here so every formula truncates the same way.
package mathx

import "math"

// Precision is the number of decimals kept by Round.
const Precision = 6

const roundFactor = 1e6

// Round rounds to six decimal places. Applied after every formula step so long
// runs do not accumulate float drift.
func Round(v float64) float64 {
	return math.Round(v*roundFactor) / roundFactor
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Sharpen maps a [0,1] preference to clamp(2p, 0, 2)^4, so preferences near 0
// or 1 dominate a product of factors. 0.5 maps to 1.
func Sharpen(p float64) float64 {
	f := Clamp(2*p, 0, 2)
	f *= f
	return f * f
}

// Lerp blends a toward b by t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// NearlyEqual compares within the rounding precision.
func NearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1.5/roundFactor
}

// RoundDown truncates toward negative infinity at six decimals. Used when a
// set of shares must not sum above its total after rounding.
func RoundDown(v float64) float64 {
	return math.Floor(v*roundFactor) / roundFactor
}
