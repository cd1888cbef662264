package fill

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	red   = color.NRGBA{255, 0, 0, 255}
	black = color.NRGBA{0, 0, 0, 255}
)

// newBuffer creates a w×h buffer filled with c.
func newBuffer(w, h int, c color.NRGBA) *image.NRGBA {
	buf := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.SetNRGBA(x, y, c)
		}
	}
	return buf
}

func countColor(buf *image.NRGBA, c color.NRGBA) int {
	n := 0
	b := buf.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if buf.NRGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestFill_WhiteBufferToRed(t *testing.T) {
	buf := newBuffer(4, 4, white)

	changed, err := Fill(buf, 0, 0, red, 10)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 16 {
		t.Errorf("changed: got %d, want 16", changed)
	}
	if got := countColor(buf, red); got != 16 {
		t.Errorf("red pixels: got %d, want 16", got)
	}
}

func TestFill_SecondCallIsNoop(t *testing.T) {
	buf := newBuffer(8, 8, white)

	if _, err := Fill(buf, 3, 3, red, 10); err != nil {
		t.Fatalf("first Fill failed: %v", err)
	}
	changed, err := Fill(buf, 3, 3, red, 10)
	if err != nil {
		t.Fatalf("second Fill failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("second fill changed %d pixels, want 0", changed)
	}
}

func TestFill_SeedAlreadyFillColor(t *testing.T) {
	buf := newBuffer(5, 5, red)
	changed, err := Fill(buf, 2, 2, red, 100)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("changed: got %d, want 0", changed)
	}
}

func TestFill_SameRGBDifferentAlphaIsNotNoop(t *testing.T) {
	buf := newBuffer(3, 3, white)
	translucent := color.NRGBA{255, 255, 255, 128}

	changed, err := Fill(buf, 0, 0, translucent, 0)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 9 {
		t.Errorf("changed: got %d, want 9", changed)
	}
	if got := buf.NRGBAAt(1, 1); got != translucent {
		t.Errorf("alpha should be overwritten, got %v", got)
	}
}

func TestFill_InvalidSeed(t *testing.T) {
	buf := newBuffer(4, 4, white)

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 0},
		{"negative y", 0, -1},
		{"x too large", 4, 0},
		{"y too large", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fill(buf, tt.x, tt.y, red, 10)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("expected ErrInvalidSeed, got %v", err)
			}
		})
	}

	if _, err := Fill(nil, 0, 0, red, 10); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("nil buffer: expected ErrInvalidSeed, got %v", err)
	}
}

func TestFill_StopsAtDissimilarPixels(t *testing.T) {
	// A black wall at x=2 splits the buffer.
	buf := newBuffer(5, 3, white)
	for y := 0; y < 3; y++ {
		buf.SetNRGBA(2, y, black)
	}

	changed, err := Fill(buf, 0, 0, red, 10)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 6 {
		t.Errorf("changed: got %d, want 6", changed)
	}
	if buf.NRGBAAt(4, 0) != white {
		t.Error("fill crossed the wall")
	}
}

func TestFill_FourConnectedOnly(t *testing.T) {
	// Checkerboard: white pixels only touch diagonally.
	buf := newBuffer(4, 4, black)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if (x+y)%2 == 0 {
				buf.SetNRGBA(x, y, white)
			}
		}
	}

	changed, err := Fill(buf, 0, 0, red, 10)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed: got %d, want 1 (no diagonal spread)", changed)
	}
}

func TestFill_ToleranceIsGlobalToSeed(t *testing.T) {
	// A horizontal gradient where neighbours differ by 6 per channel step but
	// drift away from the seed color.
	buf := image.NewNRGBA(image.Rect(0, 0, 10, 1))
	for x := 0; x < 10; x++ {
		v := uint8(200 - 6*x)
		buf.SetNRGBA(x, 0, color.NRGBA{v, v, v, 255})
	}

	// Distance from seed grows by 6*sqrt(3) ≈ 10.39 per step, so a tolerance
	// of 25 admits x=0,1,2 only even though each neighbour pair is close.
	changed, err := Fill(buf, 0, 0, red, 25)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 3 {
		t.Errorf("changed: got %d, want 3", changed)
	}
}

func TestFill_LargeBufferTerminates(t *testing.T) {
	buf := newBuffer(256, 256, white)
	changed, err := Fill(buf, 128, 128, red, 0)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 256*256 {
		t.Errorf("changed: got %d, want %d", changed, 256*256)
	}
}

func TestFill_FillColorWithinTolerance(t *testing.T) {
	// Fill color close to the seed color must still terminate.
	nearWhite := color.NRGBA{250, 250, 250, 255}
	buf := newBuffer(16, 16, white)

	changed, err := Fill(buf, 0, 0, nearWhite, 20)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if changed != 256 {
		t.Errorf("changed: got %d, want 256", changed)
	}
}

func TestFill_NeighbourAtToleranceIsFilled(t *testing.T) {
	tests := []struct {
		name      string
		seed      color.NRGBA
		neighbour color.NRGBA
		tolerance float64
		want      int
	}{
		{"one unit apart", color.NRGBA{42, 0, 0, 255}, color.NRGBA{43, 0, 0, 255}, 1, 2},
		{"3-4-5 triangle", color.NRGBA{0, 0, 0, 255}, color.NRGBA{3, 4, 0, 255}, 5, 2},
		{"all channels", color.NRGBA{10, 20, 30, 255}, color.NRGBA{12, 22, 31, 255}, 3, 2},
		{"just outside", color.NRGBA{0, 0, 0, 255}, color.NRGBA{3, 4, 1, 255}, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := image.NewNRGBA(image.Rect(0, 0, 2, 1))
			buf.SetNRGBA(0, 0, tt.seed)
			buf.SetNRGBA(1, 0, tt.neighbour)

			changed, err := Fill(buf, 0, 0, white, tt.tolerance)
			if err != nil {
				t.Fatalf("Fill failed: %v", err)
			}
			if changed != tt.want {
				t.Errorf("changed: got %d, want %d", changed, tt.want)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b color.NRGBA
		want float64
	}{
		{"identical", white, white, 0},
		{"3-4-5", color.NRGBA{0, 0, 0, 255}, color.NRGBA{3, 4, 0, 255}, 5},
		{"one unit", color.NRGBA{42, 0, 0, 255}, color.NRGBA{43, 0, 0, 255}, 1},
		{"white to black", white, black, math.Sqrt(3 * 255 * 255)},
		{"alpha ignored", color.NRGBA{10, 10, 10, 0}, color.NRGBA{10, 10, 10, 255}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Distance: got %f, want %f", got, tt.want)
			}
		})
	}
}
