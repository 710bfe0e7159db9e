package colorcrunch

// Initializer selects the center-seeding strategy.
type Initializer int

const (
	// KMeansPlusPlus seeds centers with probability proportional to
	// squared distance from the nearest already-chosen center.
	KMeansPlusPlus Initializer = iota
	// Random seeds centers by drawing K indices from the working set
	// uniformly, with replacement.
	Random
)

func (i Initializer) String() string {
	switch i {
	case KMeansPlusPlus:
		return "KMeansPlusPlus"
	case Random:
		return "Random"
	default:
		return "Initializer(?)"
	}
}

// Algorithm selects the Lloyd iteration backend.
type Algorithm int

const (
	// Lloyd runs the scalar CPU backend.
	Lloyd Algorithm = iota
	// LloydGpu runs the compute-shader GPU backend.
	LloydGpu
)

func (a Algorithm) String() string {
	switch a {
	case Lloyd:
		return "Lloyd"
	case LloydGpu:
		return "LloydGpu"
	default:
		return "Algorithm(?)"
	}
}

// gpuMaxPixels is the largest buffer the GPU backend's 32-bit atomic
// channel-sum reduction can represent without overflow: 255*N <= 2^32-1.
const gpuMaxPixels = 1 << 24

// Config is the validated option set consumed by Build. Use DefaultConfig
// to obtain one with sensible defaults, then adjust fields via either
// the mutating Set* methods or the copy-returning With* methods — both
// share the same validation path and are semantically identical.
type Config struct {
	maxColors     int
	sampleRate    float64
	tolerance     float64
	maxIterations int
	initializer   Initializer
	algorithm     Algorithm
	seed          uint64
}

// DefaultConfig returns a Config populated with the documented defaults:
// maxColors=16, sampleRate=1.0, tolerance=1.0, maxIterations=100,
// initializer=KMeansPlusPlus, algorithm=Lloyd, seed=0.
func DefaultConfig() *Config {
	return &Config{
		maxColors:     16,
		sampleRate:    1.0,
		tolerance:     1.0,
		maxIterations: 100,
		initializer:   KMeansPlusPlus,
		algorithm:     Lloyd,
		seed:          0,
	}
}

// SetMaxColors mutates and returns c with the palette size bound K.
func (c *Config) SetMaxColors(k int) *Config { c.maxColors = k; return c }

// WithMaxColors returns a copy of c with the palette size bound K.
func (c *Config) WithMaxColors(k int) *Config { cp := *c; return cp.SetMaxColors(k) }

// SetSampleRate mutates and returns c with the fitting sample rate r.
func (c *Config) SetSampleRate(r float64) *Config { c.sampleRate = r; return c }

// WithSampleRate returns a copy of c with the fitting sample rate r.
func (c *Config) WithSampleRate(r float64) *Config { cp := *c; return cp.SetSampleRate(r) }

// SetTolerance mutates and returns c with the convergence drift threshold.
func (c *Config) SetTolerance(t float64) *Config { c.tolerance = t; return c }

// WithTolerance returns a copy of c with the convergence drift threshold.
func (c *Config) WithTolerance(t float64) *Config { cp := *c; return cp.SetTolerance(t) }

// SetMaxIterations mutates and returns c with the Lloyd iteration cap.
func (c *Config) SetMaxIterations(n int) *Config { c.maxIterations = n; return c }

// WithMaxIterations returns a copy of c with the Lloyd iteration cap.
func (c *Config) WithMaxIterations(n int) *Config { cp := *c; return cp.SetMaxIterations(n) }

// SetInitializer mutates and returns c with the center-seeding strategy.
func (c *Config) SetInitializer(i Initializer) *Config { c.initializer = i; return c }

// WithInitializer returns a copy of c with the center-seeding strategy.
func (c *Config) WithInitializer(i Initializer) *Config { cp := *c; return cp.SetInitializer(i) }

// SetAlgorithm mutates and returns c with the backend selection.
func (c *Config) SetAlgorithm(a Algorithm) *Config { c.algorithm = a; return c }

// WithAlgorithm returns a copy of c with the backend selection.
func (c *Config) WithAlgorithm(a Algorithm) *Config { cp := *c; return cp.SetAlgorithm(a) }

// SetSeed mutates and returns c with the RNG seed.
func (c *Config) SetSeed(s uint64) *Config { c.seed = s; return c }

// WithSeed returns a copy of c with the RNG seed.
func (c *Config) WithSeed(s uint64) *Config { cp := *c; return cp.SetSeed(s) }

// Validate checks every field against its documented range, in table
// order, returning an *InvalidConfig describing the first violation
// found, or nil if c is valid.
func (c *Config) Validate() error {
	switch {
	case c.maxColors < 1 || c.maxColors > 256:
		return &InvalidConfig{Field: "maxColors", Reason: "must be in [1, 256]"}
	case c.sampleRate <= 0 || c.sampleRate > 1:
		return &InvalidConfig{Field: "sampleRate", Reason: "must be in (0, 1]"}
	case c.tolerance < 0:
		return &InvalidConfig{Field: "tolerance", Reason: "must be >= 0"}
	case c.maxIterations < 1:
		return &InvalidConfig{Field: "maxIterations", Reason: "must be >= 1"}
	case c.initializer != Random && c.initializer != KMeansPlusPlus:
		return &InvalidConfig{Field: "initializer", Reason: "unrecognized initializer"}
	case c.algorithm != Lloyd && c.algorithm != LloydGpu:
		return &InvalidConfig{Field: "algorithm", Reason: "unrecognized algorithm"}
	default:
		return nil
	}
}

// Build validates c and, if valid, constructs a Quantizer bound to an
// immutable snapshot of c. The GPU backend additionally requires a
// compute-capable adapter; failure to acquire one surfaces as
// *BackendUnavailable.
func (c *Config) Build() (*Quantizer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := *c
	q := &Quantizer{cfg: cfg}
	if cfg.algorithm == LloydGpu {
		backend, err := newGPUBackend(cfg)
		if err != nil {
			return nil, err
		}
		q.gpu = backend
	}
	return q, nil
}
