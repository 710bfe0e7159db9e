package colorcrunch

import (
	"math"

	"github.com/gogpu/colorcrunch/internal/parallel"
)

// cpuChunkTargetSize bounds how many pixels a single worker-pool task
// processes before the next chunk boundary, so chunk count scales with
// input size rather than always equaling worker count.
const cpuChunkTargetSize = 4096

// nearestCenter returns the index of the center in centers nearest to p
// in squared Euclidean distance, ties resolving to the lowest index.
func nearestCenter(p PixelF, centers []PixelF) int {
	best := 0
	bestDist := distSquared(p, centers[0])
	for k := 1; k < len(centers); k++ {
		d := distSquared(p, centers[k])
		if d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best
}

// chunkBounds splits n items into a number of contiguous [lo, hi) ranges
// sized around cpuChunkTargetSize, but never more than 4x the pool's
// worker count so each worker gets multiple chunks to steal from.
func chunkBounds(n, workers int) [][2]int {
	if n == 0 {
		return nil
	}
	numChunks := (n + cpuChunkTargetSize - 1) / cpuChunkTargetSize
	maxChunks := workers * 4
	if numChunks < 1 {
		numChunks = 1
	}
	if numChunks > maxChunks {
		numChunks = maxChunks
	}
	if numChunks > n {
		numChunks = n
	}
	bounds := make([][2]int, numChunks)
	base := n / numChunks
	rem := n % numChunks
	lo := 0
	for c := 0; c < numChunks; c++ {
		size := base
		if c < rem {
			size++
		}
		hi := lo + size
		bounds[c] = [2]int{lo, hi}
		lo = hi
	}
	return bounds
}

// assignAndReduce runs the assign+reduce steps of one Lloyd iteration
// over indices, a set of pixel indices into buf. Work is split into
// fixed, index-ordered chunks executed by pool; each chunk accumulates
// into its own clusterAccumulator slice, and the chunks are merged back
// in chunk order (never completion order) so the result is independent
// of goroutine scheduling.
func assignAndReduce(pool *parallel.WorkerPool, buf *PixelBuffer, indices []int, centers []PixelF) []clusterAccumulator {
	k := len(centers)
	bounds := chunkBounds(len(indices), pool.Workers())
	chunkAccs := make([][]clusterAccumulator, len(bounds))

	tasks := make([]func(), len(bounds))
	for c, b := range bounds {
		c, lo, hi := c, b[0], b[1]
		tasks[c] = func() {
			acc := make([]clusterAccumulator, k)
			for _, idx := range indices[lo:hi] {
				px := buf.At(idx)
				best := nearestCenter(px.ToPixelF(), centers)
				acc[best].add(px)
			}
			chunkAccs[c] = acc
		}
	}
	pool.ExecuteAll(tasks)

	total := make([]clusterAccumulator, k)
	for _, acc := range chunkAccs {
		for ki := range total {
			total[ki].merge(acc[ki])
		}
	}
	return total
}

// updateCenters folds accumulated per-cluster sums into new centers and
// returns the drift, the maximum per-center movement. Empty clusters
// keep their previous center unchanged; pruning happens only once, at
// the end of the Quantizer run.
func updateCenters(accs []clusterAccumulator, prev []PixelF) (next []PixelF, delta float64) {
	next = make([]PixelF, len(prev))
	for k, acc := range accs {
		mean, ok := acc.center()
		if !ok {
			next[k] = prev[k]
			continue
		}
		next[k] = mean
		d := math.Sqrt(distSquared(mean, prev[k]))
		if d > delta {
			delta = d
		}
	}
	return next, delta
}

// finalAssign computes the assignment of every pixel in buf to its
// nearest current center, regardless of whether fitting used a sample.
// Returns a length-N uint32 slice.
func finalAssign(pool *parallel.WorkerPool, buf *PixelBuffer, centers []PixelF) []uint32 {
	n := buf.Len()
	assignments := make([]uint32, n)
	bounds := chunkBounds(n, pool.Workers())

	tasks := make([]func(), len(bounds))
	for c, b := range bounds {
		lo, hi := b[0], b[1]
		tasks[c] = func() {
			for i := lo; i < hi; i++ {
				best := nearestCenter(buf.AtF(i), centers)
				assignments[i] = uint32(best)
			}
		}
	}
	pool.ExecuteAll(tasks)
	return assignments
}
