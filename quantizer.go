package colorcrunch

import (
	"math"
	"sync"

	"github.com/gogpu/colorcrunch/internal/parallel"
)

// QuantizationResult is the outcome of a QuantizeImage call: a palette
// of K' <= maxColors centers and a per-pixel assignment into that
// palette.
type QuantizationResult struct {
	Centers     []Pixel8
	Assignments []uint32
}

// Quantizer drives initialization then Lloyd iteration to convergence,
// then a final full-buffer assignment pass and empty-cluster pruning.
// Construct one via Config.Build.
type Quantizer struct {
	cfg Config
	gpu *gpuBackend

	poolOnce sync.Once
	pool     *parallel.WorkerPool
}

func (q *Quantizer) workerPool() *parallel.WorkerPool {
	q.poolOnce.Do(func() {
		q.pool = parallel.NewWorkerPool(0)
	})
	return q.pool
}

// Close releases the GPU backend's compiled pipeline, if the Quantizer
// holds one, and shuts down its worker pool. Safe to call on a Quantizer
// built with algorithm == Lloyd (the GPU step is a no-op in that case).
func (q *Quantizer) Close() {
	if q.gpu != nil {
		q.gpu.close()
	}
	if q.pool != nil {
		q.pool.Close()
	}
}

// QuantizeImage runs the full pipeline over pixels, a contiguous
// interleaved R,G,B byte buffer.
func (q *Quantizer) QuantizeImage(pixels []byte) (*QuantizationResult, error) {
	buf, err := NewPixelBuffer(pixels)
	if err != nil {
		return nil, err
	}
	n := buf.Len()

	if q.cfg.algorithm == LloydGpu && n > gpuMaxPixels {
		return nil, &BufferTooLarge{N: n, MaxSize: gpuMaxPixels}
	}

	g := newRNG(q.cfg.seed)
	working := sample(g, n, q.cfg.sampleRate)
	centers := initCenters(buf, working, q.cfg.maxColors, q.cfg.initializer, g)

	var final []PixelF
	switch q.cfg.algorithm {
	case LloydGpu:
		final, err = q.gpu.run(buf, working, centers, q.cfg.tolerance, q.cfg.maxIterations)
	default:
		final, err = q.runCPU(buf, working, centers)
	}
	if err != nil {
		return nil, err
	}
	for _, c := range final {
		for _, v := range []float32{c.R, c.G, c.B} {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, &NumericFailure{Stage: "lloyd iteration"}
			}
		}
	}

	assignments := finalAssign(q.workerPool(), buf, final)
	result := prune(final, assignments)
	Logger().Info("colorcrunch: quantization completed", "pixels", n, "colors", len(result.Centers))
	return result, nil
}

// runCPU drives the scalar CPU Lloyd iteration to convergence or
// maxIterations.
func (q *Quantizer) runCPU(buf *PixelBuffer, working []int, centers []PixelF) ([]PixelF, error) {
	pool := q.workerPool()
	for iter := 0; iter < q.cfg.maxIterations; iter++ {
		accs := assignAndReduce(pool, buf, working, centers)
		next, delta := updateCenters(accs, centers)
		centers = next
		Logger().Debug("colorcrunch: lloyd iteration", "iter", iter, "drift", delta)
		if delta <= q.cfg.tolerance {
			break
		}
	}
	return centers, nil
}

// prune removes any center with no assigned pixels, compacting the
// remaining centers and remapping assignments to the new indices while
// preserving the relative order of the surviving clusters.
func prune(centers []PixelF, assignments []uint32) *QuantizationResult {
	used := make([]bool, len(centers))
	for _, a := range assignments {
		used[a] = true
	}

	remap := make([]uint32, len(centers))
	kept := make([]Pixel8, 0, len(centers))
	for old, isUsed := range used {
		if !isUsed {
			continue
		}
		remap[old] = uint32(len(kept))
		kept = append(kept, centers[old].ToPixel8())
	}

	remapped := make([]uint32, len(assignments))
	for i, a := range assignments {
		remapped[i] = remap[a]
	}

	return &QuantizationResult{Centers: kept, Assignments: remapped}
}
