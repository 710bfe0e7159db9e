// Package colorcrunch implements k-means color quantization: given a
// buffer of 8-bit RGB pixels it produces a palette of at most K
// representative colors and an assignment of every pixel to one palette
// entry.
//
// # Overview
//
// colorcrunch runs Lloyd's algorithm over a caller-supplied pixel buffer
// using one of two interchangeable compute backends:
//
//   - Lloyd: a scalar CPU backend, its assign+reduce pass chunked across
//     a worker pool for data parallelism.
//   - LloydGpu: a compute-shader backend dispatched through a portable
//     GPU HAL (github.com/gogpu/wgpu/hal), with per-cluster reduction done
//     via workgroup-local then global atomics.
//
// Both backends are seeded deterministically and are required to agree
// on the resulting palette within a small per-channel tolerance.
//
// # Quick start
//
//	q, err := colorcrunch.DefaultConfig().SetMaxColors(8).Build()
//	if err != nil {
//		// err is an *InvalidConfig
//	}
//	result, err := q.QuantizeImage(pixels) // pixels: interleaved R,G,B bytes
//
// # Architecture
//
//   - Public API: Config, Quantizer, QuantizationResult (this package)
//   - Core types: PixelBuffer, Pixel8, PixelF, clusterAccumulator
//   - Algorithms: rng, sample, initCenters (Random, KMeans++)
//   - Backends: the CPU Lloyd iteration (this package) and the GPU Lloyd
//     iteration (internal/gpu)
//
// # Non-goals
//
// Image decode/encode, perceptual color-difference metrics, streaming
// quantization of images that don't fit in memory, and multi-image joint
// palettes are out of scope.
package colorcrunch
