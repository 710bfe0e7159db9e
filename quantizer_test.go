package colorcrunch

import (
	"testing"

	"github.com/gogpu/colorcrunch/internal/parallel"
)

func newTestPool(t *testing.T) *parallel.WorkerPool {
	t.Helper()
	p := parallel.NewWorkerPool(0)
	t.Cleanup(p.Close)
	return p
}

func mustBuild(t *testing.T, cfg *Config) *Quantizer {
	t.Helper()
	q, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(q.Close)
	return q
}

// A single pixel always yields a one-entry palette equal to that pixel.
func TestQuantizeSinglePixel(t *testing.T) {
	q := mustBuild(t, DefaultConfig().SetMaxColors(4).SetSeed(1))
	result, err := q.QuantizeImage([]byte{128, 128, 128})
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}
	if len(result.Centers) != 1 {
		t.Fatalf("K' = %d, want 1", len(result.Centers))
	}
	if result.Centers[0] != (Pixel8{128, 128, 128}) {
		t.Errorf("centers[0] = %v, want {128,128,128}", result.Centers[0])
	}
	if len(result.Assignments) != 1 || result.Assignments[0] != 0 {
		t.Errorf("assignments = %v, want [0]", result.Assignments)
	}
}

// A two-color image with K=2 recovers both colors exactly, each pixel
// assigned to the matching center.
func TestQuantizeTwoColorImage(t *testing.T) {
	n := 200
	data := make([]byte, n*3)
	for i := 0; i < n; i++ {
		if i < 100 {
			data[i*3], data[i*3+1], data[i*3+2] = 255, 0, 0
		} else {
			data[i*3], data[i*3+1], data[i*3+2] = 0, 0, 255
		}
	}
	q := mustBuild(t, DefaultConfig().SetMaxColors(2).SetSeed(0))
	result, err := q.QuantizeImage(data)
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}
	if len(result.Centers) != 2 {
		t.Fatalf("K' = %d, want 2", len(result.Centers))
	}

	haveRed, haveBlue := false, false
	for _, c := range result.Centers {
		switch c {
		case Pixel8{255, 0, 0}:
			haveRed = true
		case Pixel8{0, 0, 255}:
			haveBlue = true
		}
	}
	if !haveRed || !haveBlue {
		t.Fatalf("centers = %v, want exactly {255,0,0} and {0,0,255}", result.Centers)
	}

	redIdx, blueIdx := result.Assignments[0], result.Assignments[100]
	if redIdx == blueIdx {
		t.Fatal("red and blue pixels share the same assignment index")
	}
	for i := 0; i < 100; i++ {
		if result.Assignments[i] != redIdx {
			t.Fatalf("assignments[%d] = %d, want %d (all red pixels)", i, result.Assignments[i], redIdx)
		}
	}
	for i := 100; i < 200; i++ {
		if result.Assignments[i] != blueIdx {
			t.Fatalf("assignments[%d] = %d, want %d (all blue pixels)", i, result.Assignments[i], blueIdx)
		}
	}
}

// A uniform image collapses to a single-entry palette regardless of K.
func TestQuantizeUniformImage(t *testing.T) {
	n := 1000
	data := make([]byte, n*3)
	for i := 0; i < n; i++ {
		data[i*3], data[i*3+1], data[i*3+2] = 50, 50, 50
	}
	q := mustBuild(t, DefaultConfig().SetMaxColors(8).SetSeed(3))
	result, err := q.QuantizeImage(data)
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}
	if len(result.Centers) != 1 {
		t.Fatalf("K' = %d, want 1", len(result.Centers))
	}
	if result.Centers[0] != (Pixel8{50, 50, 50}) {
		t.Errorf("center = %v, want {50,50,50}", result.Centers[0])
	}
}

// K=1 on any non-empty buffer produces the componentwise mean of all
// pixels, with every pixel assigned to index 0.
func TestQuantizeKEqualsOneIsComponentwiseMean(t *testing.T) {
	data := []byte{0, 0, 0, 100, 0, 0, 0, 100, 0, 0, 0, 100}
	q := mustBuild(t, DefaultConfig().SetMaxColors(1).SetSeed(5))
	result, err := q.QuantizeImage(data)
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}
	if len(result.Centers) != 1 {
		t.Fatalf("K' = %d, want 1", len(result.Centers))
	}
	want := Pixel8{25, 25, 25}
	if result.Centers[0] != want {
		t.Errorf("center = %v, want %v", result.Centers[0], want)
	}
	for i, a := range result.Assignments {
		if a != 0 {
			t.Errorf("assignments[%d] = %d, want 0", i, a)
		}
	}
}

// maxIterations=1 produces exactly the state after one assign+update
// from the initializer's centers, followed by the usual final
// full-buffer assignment pass.
func TestQuantizeMaxIterationsOne(t *testing.T) {
	n := 300
	data := make([]byte, n*3)
	for i := 0; i < n; i++ {
		v := byte((i * 255) / n)
		data[i*3], data[i*3+1], data[i*3+2] = v, v, v
	}

	seed := uint64(11)
	k := 3

	g := newRNG(seed)
	buf, err := NewPixelBuffer(data)
	if err != nil {
		t.Fatalf("NewPixelBuffer: %v", err)
	}
	working := sample(g, buf.Len(), 1.0)
	initial := initCenters(buf, working, k, KMeansPlusPlus, g)
	pool := newTestPool(t)
	accs := assignAndReduce(pool, buf, working, initial)
	oneStep, _ := updateCenters(accs, initial)
	finalAssignments := finalAssign(pool, buf, oneStep)
	want := prune(oneStep, finalAssignments)

	q := mustBuild(t, DefaultConfig().SetMaxColors(k).SetSeed(seed).SetMaxIterations(1).SetTolerance(0))
	result, err := q.QuantizeImage(data)
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}

	if len(result.Centers) != len(want.Centers) {
		t.Fatalf("K' = %d, want %d", len(result.Centers), len(want.Centers))
	}
	for i := range want.Centers {
		if result.Centers[i] != want.Centers[i] {
			t.Errorf("centers[%d] = %v, want %v", i, result.Centers[i], want.Centers[i])
		}
	}
	for i := range want.Assignments {
		if result.Assignments[i] != want.Assignments[i] {
			t.Fatalf("assignments[%d] = %d, want %d", i, result.Assignments[i], want.Assignments[i])
		}
	}
}

// Assignments always have length N, every entry lies in [0, K'), and
// every surviving cluster has at least one member.
func TestQuantizeAssignmentsBoundsAndNoEmptyClusters(t *testing.T) {
	n := 777
	data := make([]byte, n*3)
	for i := 0; i < n; i++ {
		data[i*3] = byte(i % 256)
		data[i*3+1] = byte((i * 3) % 256)
		data[i*3+2] = byte((i * 7) % 256)
	}
	q := mustBuild(t, DefaultConfig().SetMaxColors(16).SetSeed(99))
	result, err := q.QuantizeImage(data)
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}
	if len(result.Assignments) != n {
		t.Fatalf("len(assignments) = %d, want %d", len(result.Assignments), n)
	}
	seen := make([]bool, len(result.Centers))
	for i, a := range result.Assignments {
		if int(a) >= len(result.Centers) {
			t.Fatalf("assignments[%d] = %d out of range [0, %d)", i, a, len(result.Centers))
		}
		seen[a] = true
	}
	for k, ok := range seen {
		if !ok {
			t.Errorf("cluster %d has no members after pruning", k)
		}
	}
}

// Two runs with identical seed, config, and buffer on the CPU backend
// produce byte-identical output.
func TestQuantizeCPUDeterministic(t *testing.T) {
	n := 500
	data := make([]byte, n*3)
	for i := 0; i < n; i++ {
		data[i*3] = byte(i % 256)
		data[i*3+1] = byte((i * 2) % 256)
		data[i*3+2] = byte((i * 5) % 256)
	}

	run := func() *QuantizationResult {
		q := mustBuild(t, DefaultConfig().SetMaxColors(6).SetSeed(123))
		r, err := q.QuantizeImage(data)
		if err != nil {
			t.Fatalf("QuantizeImage error = %v", err)
		}
		return r
	}

	a := run()
	b := run()

	if len(a.Centers) != len(b.Centers) {
		t.Fatalf("K' mismatch: %d vs %d", len(a.Centers), len(b.Centers))
	}
	for i := range a.Centers {
		if a.Centers[i] != b.Centers[i] {
			t.Errorf("centers[%d] differ: %v vs %v", i, a.Centers[i], b.Centers[i])
		}
	}
	for i := range a.Assignments {
		if a.Assignments[i] != b.Assignments[i] {
			t.Fatalf("assignments[%d] differ: %d vs %d", i, a.Assignments[i], b.Assignments[i])
		}
	}
}

// sampleRate=1 with initializer=Random and K=1 collapses to the mean
// regardless of seed.
func TestQuantizeSampleRateOneRandomKOneCollapsesToMean(t *testing.T) {
	data := []byte{0, 0, 0, 255, 255, 255, 10, 20, 30, 40, 50, 60}
	seeds := []uint64{0, 1, 2, 12345}
	var want []Pixel8
	for _, seed := range seeds {
		q := mustBuild(t, DefaultConfig().SetMaxColors(1).SetInitializer(Random).SetSampleRate(1.0).SetSeed(seed))
		result, err := q.QuantizeImage(data)
		if err != nil {
			t.Fatalf("QuantizeImage error = %v", err)
		}
		if want == nil {
			want = result.Centers
		} else if result.Centers[0] != want[0] {
			t.Errorf("seed %d: center = %v, want %v", seed, result.Centers[0], want[0])
		}
	}
}

// Re-quantizing a palette image (one pixel per center, N=K) with the
// same K yields the same palette up to reordering.
func TestQuantizeIdempotenceOnPaletteImage(t *testing.T) {
	n := 500
	data := make([]byte, n*3)
	for i := 0; i < n; i++ {
		data[i*3] = byte(i % 256)
		data[i*3+1] = byte((i * 4) % 256)
		data[i*3+2] = byte((i * 9) % 256)
	}

	q := mustBuild(t, DefaultConfig().SetMaxColors(5).SetSeed(42))
	first, err := q.QuantizeImage(data)
	if err != nil {
		t.Fatalf("QuantizeImage error = %v", err)
	}

	paletteData := make([]byte, len(first.Centers)*3)
	for i, c := range first.Centers {
		paletteData[i*3], paletteData[i*3+1], paletteData[i*3+2] = c.R, c.G, c.B
	}

	q2 := mustBuild(t, DefaultConfig().SetMaxColors(len(first.Centers)).SetSeed(42))
	second, err := q2.QuantizeImage(paletteData)
	if err != nil {
		t.Fatalf("QuantizeImage (palette) error = %v", err)
	}

	if len(second.Centers) != len(first.Centers) {
		t.Fatalf("K' mismatch on re-quantization: %d vs %d", len(second.Centers), len(first.Centers))
	}
	for _, c := range first.Centers {
		found := false
		for _, c2 := range second.Centers {
			if c == c2 {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("center %v from first pass missing from re-quantized palette %v", c, second.Centers)
		}
	}
}

func TestQuantizeEmptyBufferError(t *testing.T) {
	q := mustBuild(t, DefaultConfig())
	_, err := q.QuantizeImage(nil)
	if _, ok := err.(*EmptyBuffer); !ok {
		t.Fatalf("QuantizeImage(nil) error = %v, want *EmptyBuffer", err)
	}
}
