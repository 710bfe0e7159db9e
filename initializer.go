package colorcrunch

// initCenters produces the K initial centers from the working set.
// working holds pixel indices into buf, as produced by sample; it is
// never empty and the caller guarantees k >= 1.
func initCenters(buf *PixelBuffer, working []int, k int, init Initializer, g *rng) []PixelF {
	switch init {
	case Random:
		return initRandom(buf, working, k, g)
	default:
		return initKMeansPlusPlus(buf, working, k, g)
	}
}

// initRandom draws k pixel indices from working uniformly, with
// replacement. Duplicate centers are kept as-is.
func initRandom(buf *PixelBuffer, working []int, k int, g *rng) []PixelF {
	centers := make([]PixelF, k)
	for i := range centers {
		idx := working[g.IntN(len(working))]
		centers[i] = buf.AtF(idx)
	}
	return centers
}

// initKMeansPlusPlus seeds the first center uniformly from working, then
// seeds each subsequent center by sampling one pixel from working with
// probability proportional to its squared distance from the nearest
// already-chosen center. Runs in O(K*m) distance evaluations: the
// min-distance-to-nearest-center table is updated incrementally as each
// new center is chosen rather than recomputed from scratch.
func initKMeansPlusPlus(buf *PixelBuffer, working []int, k int, g *rng) []PixelF {
	m := len(working)
	centers := make([]PixelF, 0, k)

	first := working[g.IntN(m)]
	centers = append(centers, buf.AtF(first))

	nearestSq := make([]float64, m)
	for i, idx := range working {
		nearestSq[i] = distSquared(buf.AtF(idx), centers[0])
	}

	prefix := make([]float64, m)
	for len(centers) < k {
		total := 0.0
		for i, d := range nearestSq {
			total += d
			prefix[i] = total
		}

		var chosen int
		if total <= 0 {
			chosen = 0
		} else {
			target := g.Float64() * total
			chosen = m - 1
			for i, p := range prefix {
				if p > target {
					chosen = i
					break
				}
			}
		}

		next := buf.AtF(working[chosen])
		centers = append(centers, next)

		for i, idx := range working {
			d := distSquared(buf.AtF(idx), next)
			if d < nearestSq[i] {
				nearestSq[i] = d
			}
		}
	}
	return centers
}
