package classify

import (
	"testing"
)

func TestClassify_ReferenceColors(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		tol     int
		want    Class
	}{
		{"exact building", 0xFF, 0xE6, 0xBE, DefaultTolerance, Building},
		{"exact building zero tolerance", 0xFF, 0xE6, 0xBE, 0, Building},
		{"exact boundary", 0xAF, 0xAF, 0xAF, DefaultTolerance, Boundary},
		{"white is nothing", 0xFF, 0xFF, 0xFF, DefaultTolerance, None},
		{"black is nothing", 0, 0, 0, DefaultTolerance, None},
		{"near building", 0xF5, 0xE0, 0xC8, DefaultTolerance, Building},
		{"osm land is nothing", 0xF2, 0xEF, 0xE9, DefaultTolerance, None},
		{"building wins over boundary", 0xCF, 0xC3, 0xBA, DefaultTolerance, Building},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.r, tt.g, tt.b, tt.tol)
			if got != tt.want {
				t.Errorf("Classify(%d,%d,%d,%d): got %s, want %s", tt.r, tt.g, tt.b, tt.tol, got, tt.want)
			}
		})
	}
}

func TestClassify_ToleranceIsInclusive(t *testing.T) {
	// 0xFFE6BE shifted by 50 on blue only.
	if got := Classify(0xFF, 0xE6, 0xBE-50, 50); got != Building {
		t.Errorf("distance 50 at tolerance 50: got %s, want building", got)
	}
	if got := Classify(0xFF, 0xE6, 0xBE-51, 50); got == Building {
		t.Errorf("distance 51 at tolerance 50 should not match building")
	}
}

func TestClassify_UsesManhattanNotEuclidean(t *testing.T) {
	// Two channels off by 30: Euclidean distance 42.4, Manhattan 60.
	p := Palette{Building: []RGB{{R: 100, G: 100, B: 100}}}
	if got := p.Classify(130, 130, 100, 50); got != None {
		t.Errorf("got %s, want none: Manhattan distance 60 exceeds 50", got)
	}
	if got := p.Classify(130, 130, 100, 60); got != Building {
		t.Errorf("got %s, want building at tolerance 60", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 256; i += 7 {
		r, g, b := uint8(i), uint8(255-i), uint8(i/2)
		first := Classify(r, g, b, DefaultTolerance)
		for n := 0; n < 5; n++ {
			if got := Classify(r, g, b, DefaultTolerance); got != first {
				t.Fatalf("Classify(%d,%d,%d) changed from %s to %s", r, g, b, first, got)
			}
		}
	}
}

func TestClassify_MonotonicInTolerance(t *testing.T) {
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 15 {
			for b := 0; b < 256; b += 15 {
				matched := false
				for tol := MinTolerance; tol <= MaxTolerance; tol += 5 {
					c := Classify(uint8(r), uint8(g), uint8(b), tol)
					if matched && c == None {
						t.Fatalf("(%d,%d,%d): matched at lower tolerance but not at %d", r, g, b, tol)
					}
					if c != None {
						matched = true
					}
				}
			}
		}
	}
}

func TestManhattan(t *testing.T) {
	tests := []struct {
		a, b RGB
		want int
	}{
		{RGB{0, 0, 0}, RGB{0, 0, 0}, 0},
		{RGB{255, 255, 255}, RGB{0, 0, 0}, 765},
		{RGB{10, 20, 30}, RGB{20, 10, 40}, 30},
	}
	for _, tt := range tests {
		if got := Manhattan(tt.a, tt.b); got != tt.want {
			t.Errorf("Manhattan(%v,%v): got %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClampTolerance(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, DefaultTolerance},
		{0, 0},
		{42, 42},
		{100, 100},
		{250, MaxTolerance},
	}
	for _, tt := range tests {
		if got := ClampTolerance(tt.in); got != tt.want {
			t.Errorf("ClampTolerance(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewPalette(t *testing.T) {
	p, err := NewPalette([]string{"#112233"}, []string{"#aabbcc"})
	if err != nil {
		t.Fatalf("NewPalette failed: %v", err)
	}
	if p.Building[0] != (RGB{0x11, 0x22, 0x33}) {
		t.Errorf("building sample: got %v", p.Building[0])
	}
	if p.Boundary[0].Hex() != "#AABBCC" {
		t.Errorf("boundary sample: got %s", p.Boundary[0].Hex())
	}

	if _, err := NewPalette([]string{"not-a-color"}, nil); err == nil {
		t.Error("NewPalette should reject malformed hex")
	}
}

func TestDefaultPalette_IsCopy(t *testing.T) {
	p := DefaultPalette()
	p.Building[0] = RGB{}
	if got := Classify(0xFF, 0xE6, 0xBE, 0); got != Building {
		t.Error("mutating DefaultPalette() result changed the shared palette")
	}
}
