package engine

import "math/rand"

// RNG wraps math/rand.Rand with deterministic position tracking.
// Position increments with every draw, so a run can report how much
// randomness it consumed and a sampler can be replayed.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// WeightedSelect returns an index chosen by weighted random selection.
// Non-positive weights are never chosen unless every weight is
// non-positive, in which case the choice is uniform.
func (r *RNG) WeightedSelect(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	r.pos++
	roll := r.src.Float64()
	if total == 0 {
		return int(roll * float64(len(weights)))
	}
	roll *= total
	cumulative := 0.0
	last := 0
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

// Sample draws k distinct indices without replacement, each draw
// weighted by weights. The result is in draw order. If k >= len(weights)
// every index is returned in order without drawing.
func (r *RNG) Sample(weights []float64, k int) []int {
	if k >= len(weights) {
		out := make([]int, len(weights))
		for i := range out {
			out[i] = i
		}
		return out
	}
	left := append([]float64(nil), weights...)
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	out := make([]int, 0, k)
	for len(out) < k {
		j := r.WeightedSelect(left)
		out = append(out, idx[j])
		left = append(left[:j], left[j+1:]...)
		idx = append(idx[:j], idx[j+1:]...)
	}
	return out
}

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}

// RestoreRNG creates an RNG and advances it to the given position.
func RestoreRNG(seed int64, position int64) *RNG {
	rng := NewRNG(seed)
	for i := int64(0); i < position; i++ {
		rng.src.Float64()
	}
	rng.pos = position
	return rng
}
