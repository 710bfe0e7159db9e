//go:build !nogpu

package colorcrunch

import (
	"fmt"

	"github.com/gogpu/colorcrunch/internal/gpu"
)

// gpuBackend adapts the flat uint32/float32 wire format internal/gpu
// operates on to this package's PixelBuffer/PixelF types, keeping the
// dispatch internals (device, pipeline, buffers) out of the root
// package's import graph.
type gpuBackend struct {
	b *gpu.Backend
}

// newGPUBackend opens a compute-capable GPU device for algorithm ==
// LloydGpu. The cluster count is checked against the shader's
// MAX_CLUSTERS bound up front so a too-large K fails at Build rather
// than mid-run.
func newGPUBackend(cfg Config) (*gpuBackend, error) {
	if cfg.maxColors > gpu.MaxClusters {
		return nil, &BackendUnavailable{
			Backend: "LloydGpu",
			Reason:  fmt.Sprintf("maxColors %d exceeds the GPU backend's cluster limit %d", cfg.maxColors, gpu.MaxClusters),
		}
	}
	b, err := gpu.Open()
	if err != nil {
		return nil, &BackendUnavailable{Backend: "LloydGpu", Reason: err.Error()}
	}
	return &gpuBackend{b: b}, nil
}

// run executes Lloyd iterations over the working set on the GPU,
// starting from centers, until drift falls to tolerance or
// maxIterations is reached.
func (g *gpuBackend) run(buf *PixelBuffer, working []int, centers []PixelF, tolerance float64, maxIterations int) ([]PixelF, error) {
	if len(working) > gpu.MaxPixels {
		return nil, &BufferTooLarge{N: len(working), MaxSize: gpu.MaxPixels}
	}

	pixelChannels := make([]uint32, len(working)*3)
	for i, idx := range working {
		p := buf.At(idx)
		pixelChannels[i*3] = uint32(p.R)
		pixelChannels[i*3+1] = uint32(p.G)
		pixelChannels[i*3+2] = uint32(p.B)
	}

	flat := make([]float32, len(centers)*3)
	for i, c := range centers {
		flat[i*3] = c.R
		flat[i*3+1] = c.G
		flat[i*3+2] = c.B
	}

	out, err := g.b.Run(pixelChannels, flat, len(centers), tolerance, maxIterations)
	if err != nil {
		return nil, fmt.Errorf("colorcrunch: gpu lloyd iteration: %w", err)
	}

	result := make([]PixelF, len(centers))
	for i := range result {
		result[i] = PixelF{R: out[i*3], G: out[i*3+1], B: out[i*3+2]}
	}
	return result, nil
}

// close releases the GPU backend's compiled pipeline (see gpu.Backend.Close).
func (g *gpuBackend) close() {
	g.b.Close()
}
