package classify

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultTolerance is used when the caller does not supply one.
	DefaultTolerance = 50

	// MinTolerance and MaxTolerance bound user-adjustable tolerances.
	MinTolerance = 0
	MaxTolerance = 100
)

// Class is the label assigned to a pixel.
type Class int

const (
	None Class = iota
	Building
	Boundary
)

// String returns the lower-case class name.
func (c Class) String() string {
	switch c {
	case Building:
		return "building"
	case Boundary:
		return "boundary"
	default:
		return "none"
	}
}

// RGB is an 8-bit color sample without alpha.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the sample as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Palette holds the reference samples for each class. Order inside a class
// does not affect the result.
type Palette struct {
	Building []RGB
	Boundary []RGB
}

// Reference colors of building fills and outlines in common raster styles.
var (
	defaultBuildingHex = []string{"#FFE6BE", "#D9D0C9"}
	defaultBoundaryHex = []string{"#C4B6AB", "#AFAFAF"}
)

var defaultPalette = mustPalette(defaultBuildingHex, defaultBoundaryHex)

// DefaultPalette returns a copy of the built-in reference palette.
func DefaultPalette() Palette {
	return Palette{
		Building: append([]RGB(nil), defaultPalette.Building...),
		Boundary: append([]RGB(nil), defaultPalette.Boundary...),
	}
}

// NewPalette builds a palette from "#RRGGBB" strings.
func NewPalette(building, boundary []string) (Palette, error) {
	b, err := parseSamples(building)
	if err != nil {
		return Palette{}, fmt.Errorf("invalid building sample: %w", err)
	}
	o, err := parseSamples(boundary)
	if err != nil {
		return Palette{}, fmt.Errorf("invalid boundary sample: %w", err)
	}
	return Palette{Building: b, Boundary: o}, nil
}

// Classify labels an RGB triple using the default palette.
func Classify(r, g, b uint8, tolerance int) Class {
	return defaultPalette.Classify(r, g, b, tolerance)
}

// Classify labels an RGB triple. A pixel is Building when any building sample
// is within tolerance (Manhattan distance, inclusive), otherwise Boundary when
// any boundary sample is, otherwise None.
func (p Palette) Classify(r, g, b uint8, tolerance int) Class {
	c := RGB{R: r, G: g, B: b}
	if matchAny(c, p.Building, tolerance) {
		return Building
	}
	if matchAny(c, p.Boundary, tolerance) {
		return Boundary
	}
	return None
}

// Manhattan returns |ΔR| + |ΔG| + |ΔB|.
func Manhattan(a, b RGB) int {
	return absDiff(a.R, b.R) + absDiff(a.G, b.G) + absDiff(a.B, b.B)
}

// ClampTolerance maps a caller-supplied tolerance into the valid range.
// Negative values select DefaultTolerance.
func ClampTolerance(tolerance int) int {
	if tolerance < 0 {
		return DefaultTolerance
	}
	if tolerance > MaxTolerance {
		return MaxTolerance
	}
	return tolerance
}

func matchAny(c RGB, samples []RGB, tolerance int) bool {
	for _, s := range samples {
		if Manhattan(c, s) <= tolerance {
			return true
		}
	}
	return false
}

func parseSamples(hexes []string) ([]RGB, error) {
	out := make([]RGB, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", h, err)
		}
		r, g, b := c.RGB255()
		out = append(out, RGB{R: r, G: g, B: b})
	}
	return out, nil
}

func mustPalette(building, boundary []string) Palette {
	p, err := NewPalette(building, boundary)
	if err != nil {
		panic(err)
	}
	return p
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
