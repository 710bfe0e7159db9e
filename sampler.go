package colorcrunch

import "math"

// sample draws the working set used during fitting. When r == 1.0 it
// returns the full index sequence 0..n in order and consumes no
// randomness. Otherwise it draws m = max(1, floor(r*n)) indices from
// [0, n) with replacement, in the order drawn — sampling order is part
// of the (seed, sequence) contract shared with the RNG.
func sample(g *rng, n int, r float64) []int {
	if r >= 1.0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	m := int(math.Floor(r * float64(n)))
	if m < 1 {
		m = 1
	}
	idx := make([]int, m)
	for i := range idx {
		idx[i] = g.IntN(n)
	}
	return idx
}
