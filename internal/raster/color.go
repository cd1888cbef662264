package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/footprint-mcp/internal/classify"
)

// RGBAColor holds 8-bit color components including alpha.
type RGBAColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// HSLColor is hue in degrees and saturation and lightness in percent.
type HSLColor struct {
	H int `json:"h"`
	S int `json:"s"`
	L int `json:"l"`
}

// ColorResult describes one pixel.
type ColorResult struct {
	Hex   string       `json:"hex"`
	RGB   classify.RGB `json:"rgb"`
	RGBA  RGBAColor    `json:"rgba"`
	HSL   HSLColor     `json:"hsl"`
	Class string       `json:"class"`
}

// SampleColor reads the pixel at (x, y) and classifies it with palette at
// the given tolerance. Coordinates are in img's own bounds.
func SampleColor(img image.Image, x, y int, palette classify.Palette, tolerance int) (*ColorResult, error) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds %v", x, y, img.Bounds())
	}

	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	rgb := classify.RGB{R: c.R, G: c.G, B: c.B}

	return &ColorResult{
		Hex:   rgb.Hex(),
		RGB:   rgb,
		RGBA:  RGBAColor{R: c.R, G: c.G, B: c.B, A: c.A},
		HSL:   toHSL(rgb),
		Class: palette.Classify(c.R, c.G, c.B, tolerance).String(),
	}, nil
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA"; the leading '#' is
// optional. Six-digit colors are opaque.
func ParseHexColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")

	switch len(hex) {
	case 6:
		c, err := colorful.Hex("#" + hex)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		return color.NRGBA{
			R: uint8(val >> 24),
			G: uint8(val >> 16),
			B: uint8(val >> 8),
			A: uint8(val),
		}, nil
	case 0:
		return color.NRGBA{}, fmt.Errorf("empty color string")
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length %d", len(hex))
	}
}

func toHSL(c classify.RGB) HSLColor {
	h, s, l := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return HSLColor{
		H: int(math.Round(h)) % 360,
		S: int(math.Round(s * 100)),
		L: int(math.Round(l * 100)),
	}
}
