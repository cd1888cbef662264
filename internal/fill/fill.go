package fill

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// ErrInvalidSeed is returned when the seed lies outside the buffer.
var ErrInvalidSeed = errors.New("seed outside buffer")

// DefaultTolerance is the Euclidean RGB tolerance used by interactive fills.
const DefaultTolerance = 32.0

// Fill repaints the region connected to (seedX, seedY) with fillColor and
// returns the number of pixels changed.
//
// Parameters:
//   - buf: the raster to modify in place.
//   - seedX, seedY: seed pixel in buf's coordinate space.
//   - fillColor: replacement color; its alpha is written as-is.
//   - tolerance: maximum Euclidean RGB distance (0-255 units, alpha ignored)
//     from the seed's original color.
//
// A seed that already equals fillColor on all four channels changes nothing
// and returns 0. Pixels already equal to fillColor are never revisited, which
// bounds the traversal without a separate visited set.
func Fill(buf *image.NRGBA, seedX, seedY int, fillColor color.NRGBA, tolerance float64) (int, error) {
	if buf == nil {
		return 0, fmt.Errorf("%w: nil buffer", ErrInvalidSeed)
	}
	bounds := buf.Bounds()
	if !(image.Point{X: seedX, Y: seedY}).In(bounds) {
		return 0, fmt.Errorf("%w: (%d,%d) not in %v", ErrInvalidSeed, seedX, seedY, bounds)
	}

	seed := buf.NRGBAAt(seedX, seedY)
	if seed == fillColor {
		return 0, nil
	}

	changed := 0
	stack := []image.Point{{X: seedX, Y: seedY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !p.In(bounds) {
			continue
		}
		cur := buf.NRGBAAt(p.X, p.Y)
		if Distance(cur, seed) > tolerance {
			continue
		}
		if cur == fillColor {
			continue
		}

		buf.SetNRGBA(p.X, p.Y, fillColor)
		changed++

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}

	return changed, nil
}

// Distance returns the Euclidean distance between the RGB parts of two
// colors, in 8-bit channel units (0 to about 441.7). The squared sum is
// taken in integers so a neighbour exactly at the tolerance compares equal.
func Distance(a, b color.NRGBA) float64 {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return math.Sqrt(float64(dr*dr + dg*dg + db*db))
}
