//go:build nogpu

package colorcrunch

// gpuBackend is never constructed in a nogpu build; the field on
// Quantizer stays nil and Close has nothing to release.
type gpuBackend struct{}

// newGPUBackend always fails in a nogpu build: the compute-shader
// dispatch lives in internal/gpu, which this build excludes entirely.
func newGPUBackend(cfg Config) (*gpuBackend, error) {
	return nil, &BackendUnavailable{
		Backend: "LloydGpu",
		Reason:  "this binary was built with the nogpu tag",
	}
}

func (g *gpuBackend) run(buf *PixelBuffer, working []int, centers []PixelF, tolerance float64, maxIterations int) ([]PixelF, error) {
	panic("colorcrunch: gpuBackend.run called in a nogpu build")
}

func (g *gpuBackend) close() {}
