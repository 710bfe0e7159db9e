package colorcrunch

import "fmt"

// PixelBuffer is an immutable, tightly-packed sequence of N Pixel8 values.
// Pixels are indexed linearly; width/height are not intrinsic. A
// PixelBuffer is safe for concurrent read access — callers never mutate
// it for the duration of a QuantizeImage call.
//
// Shaped after a Pixmap/image buffer: a contiguous byte slice with
// bounds-checked, on-demand indexed access rather than an eager bulk
// conversion.
type PixelBuffer struct {
	data []byte // interleaved R,G,B, length == 3*n
	n    int
}

// NewPixelBuffer wraps a contiguous interleaved R,G,B byte slice as a
// PixelBuffer. data is not copied; the caller must not mutate it while
// the buffer is in use.
func NewPixelBuffer(data []byte) (*PixelBuffer, error) {
	if len(data) == 0 {
		return nil, &EmptyBuffer{}
	}
	if len(data)%3 != 0 {
		return nil, fmt.Errorf("colorcrunch: pixel data length %d is not a multiple of 3", len(data))
	}
	return &PixelBuffer{data: data, n: len(data) / 3}, nil
}

// Len returns N, the number of pixels in the buffer.
func (b *PixelBuffer) Len() int { return b.n }

// At returns the Pixel8 storage-form value at index i. It panics if i is
// out of [0, Len()) — an internal invariant violation, never a path
// reachable from caller-supplied indices.
func (b *PixelBuffer) At(i int) Pixel8 {
	o := i * 3
	return Pixel8{R: b.data[o], G: b.data[o+1], B: b.data[o+2]}
}

// AtF returns the compute-form value at index i, widened on demand.
func (b *PixelBuffer) AtF(i int) PixelF {
	return b.At(i).ToPixelF()
}

// Bytes returns the underlying interleaved R,G,B byte slice. Callers
// must treat it as read-only.
func (b *PixelBuffer) Bytes() []byte { return b.data }
