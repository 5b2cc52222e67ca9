// Package rng provides the deterministic random streams that drive every
// stochastic choice in the simulation. A value is a pure function of
// (seed, entity, date, offset), so replays and reloaded saves see the same
// numbers without any generator state being persisted.
package rng

import (
	"math/bits"
)

// Stream derives random values from the world seed. It holds no mutable state
// and is safe to copy.
type Stream struct {
	seed uint64
}

// New creates a stream for the given world seed.
func New(seed int64) Stream {
	return Stream{seed: mix(uint64(seed) + goldenGamma)}
}

// Seed returns the seed the stream was created with, pre-mix.
func (s Stream) Seed() uint64 {
	return s.seed
}

// goldenGamma and its multiples, wrapped mod 2^64.
const (
	goldenGamma  = 0x9e3779b97f4a7c15
	goldenGamma2 = 0x3c6ef372fe94f82a
	goldenGamma3 = 0xdaa66d2c7ddf743f
)

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Uint64 returns the raw 64-bit value for an (entity, date, offset) triple.
func (s Stream) Uint64(entity, date int64, offset Offset) uint64 {
	h := mix(s.seed ^ (uint64(entity) + goldenGamma))
	h = mix(h ^ (uint64(date) + goldenGamma2))
	h = mix(h ^ (uint64(offset) + goldenGamma3))
	return h
}

// Float returns a value in [0, 1).
func (s Stream) Float(entity, date int64, offset Offset) float64 {
	// 53 bits for a uniform float64.
	return float64(s.Uint64(entity, date, offset)>>11) / float64(1<<53)
}

// Int returns a value in [0, maxValue). maxValue <= 0 yields 0.
func (s Stream) Int(entity, date int64, offset Offset, maxValue int) int {
	if maxValue <= 0 {
		return 0
	}
	hi, _ := bits.Mul64(s.Uint64(entity, date, offset), uint64(maxValue))
	return int(hi)
}

// Range returns a value in [lo, hi).
func (s Stream) Range(entity, date int64, offset Offset, lo, hi float64) float64 {
	return lo + (hi-lo)*s.Float(entity, date, offset)
}

// Chance reports whether a roll falls under probability p.
func (s Stream) Chance(entity, date int64, offset Offset, p float64) bool {
	return s.Float(entity, date, offset) < p
}

// WeightedIndex picks an index with probability proportional to its weight.
// Returns -1 when every weight is zero or negative.
func (s Stream) WeightedIndex(entity, date int64, offset Offset, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	roll := s.Float(entity, date, offset) * total
	cumulative := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		last = i
		if roll < cumulative {
			return i
		}
	}
	return last
}
