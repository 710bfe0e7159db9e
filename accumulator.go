package colorcrunch

// clusterAccumulator holds the per-cluster reduction state for one Lloyd
// iteration: a pixel count and a channel-sum triple. Sums are accumulated
// as integers over the original 8-bit channel values to avoid
// floating-point drift; division into a floating-point center happens
// once per iteration in updateCenters.
type clusterAccumulator struct {
	count  uint64
	sumR   uint64
	sumG   uint64
	sumB   uint64
}

// add folds one pixel's storage-form channels into the accumulator.
func (a *clusterAccumulator) add(p Pixel8) {
	a.count++
	a.sumR += uint64(p.R)
	a.sumG += uint64(p.G)
	a.sumB += uint64(p.B)
}

// merge folds another accumulator's totals into a. Used to combine
// per-chunk accumulators produced by the worker pool in a fixed,
// caller-determined order, never completion order, so the CPU backend
// stays deterministic across runs regardless of scheduling.
func (a *clusterAccumulator) merge(o clusterAccumulator) {
	a.count += o.count
	a.sumR += o.sumR
	a.sumG += o.sumG
	a.sumB += o.sumB
}

// center returns the componentwise mean as a PixelF, and whether the
// accumulator has any members.
func (a clusterAccumulator) center() (PixelF, bool) {
	if a.count == 0 {
		return PixelF{}, false
	}
	n := float64(a.count)
	return PixelF{
		R: float32(float64(a.sumR) / n),
		G: float32(float64(a.sumG) / n),
		B: float32(float64(a.sumB) / n),
	}, true
}
