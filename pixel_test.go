package colorcrunch

import "testing"

func TestPixel8ToPixelF(t *testing.T) {
	tests := []struct {
		name string
		in   Pixel8
		want PixelF
	}{
		{"black", Pixel8{0, 0, 0}, PixelF{0, 0, 0}},
		{"white", Pixel8{255, 255, 255}, PixelF{255, 255, 255}},
		{"mid", Pixel8{128, 64, 32}, PixelF{128, 64, 32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.ToPixelF()
			if !near(float64(got.R), float64(tt.want.R), 0.01) ||
				!near(float64(got.G), float64(tt.want.G), 0.01) ||
				!near(float64(got.B), float64(tt.want.B), 0.01) {
				t.Errorf("ToPixelF(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPixelFToPixel8RoundHalfToEven(t *testing.T) {
	tests := []struct {
		name string
		in   PixelF
		want Pixel8
	}{
		{"exact", PixelF{100, 100, 100}, Pixel8{100, 100, 100}},
		{"half rounds to even 100", PixelF{100.5, 100.5, 100.5}, Pixel8{100, 100, 100}},
		{"half rounds to even 102", PixelF{101.5, 101.5, 101.5}, Pixel8{102, 102, 102}},
		{"clamp low", PixelF{-5, -5, -5}, Pixel8{0, 0, 0}},
		{"clamp high", PixelF{300, 300, 300}, Pixel8{255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.ToPixel8()
			if got != tt.want {
				t.Errorf("ToPixel8(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDistSquared(t *testing.T) {
	a := PixelF{0, 0, 0}
	b := PixelF{3, 4, 0}
	got := distSquared(a, b)
	want := 25.0
	if !near(got, want, 1e-9) {
		t.Errorf("distSquared(%v, %v) = %v, want %v", a, b, got, want)
	}
}

func near(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
