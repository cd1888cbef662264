package raster

import (
	"image"
	"image/color"
	"strconv"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/footprint-mcp/internal/classify"
	"github.com/ironsheep/footprint-mcp/internal/footprint"
)

// Overlay colors.
var (
	BuildingTint  = color.NRGBA{R: 255, G: 64, B: 0, A: 110}
	BoundaryTint  = color.NRGBA{R: 0, G: 96, B: 255, A: 110}
	PolygonStroke = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
	RadiusStroke  = color.NRGBA{R: 0, G: 160, B: 0, A: 200}
	QueryMarker   = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	LabelColor    = color.NRGBA{R: 128, G: 0, B: 128, A: 255}
)

// OverlayOptions controls RenderOverlay.
type OverlayOptions struct {
	// Palette decides which pixels are tinted as building or boundary.
	Palette classify.Palette
	// Tolerance is the Manhattan RGB tolerance passed to Palette.Classify.
	Tolerance int

	// Scale enlarges the output with nearest-neighbour sampling. Values
	// below 2 keep the original size.
	Scale int
}

// RenderOverlay draws a detection result on top of its tile. Classified
// pixels are tinted and each polygon's pixel box is outlined and labelled
// with its index. The search radius is traced around the marked query pixel.
//
// Parameters:
//   - img: the tile the result was detected on.
//   - res: the detection result; nil draws only the tint.
//   - opts: palette, tolerance and output scale.
//
// Returns a new image; img is not modified.
func RenderOverlay(img image.Image, res *footprint.Result, opts OverlayOptions) *image.NRGBA {
	base := imaging.Clone(img)
	b := base.Bounds()
	layer := image.NewNRGBA(b)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := base.NRGBAAt(x, y)
			switch opts.Palette.Classify(c.R, c.G, c.B, opts.Tolerance) {
			case classify.Building:
				layer.SetNRGBA(x, y, BuildingTint)
			case classify.Boundary:
				layer.SetNRGBA(x, y, BoundaryTint)
			}
		}
	}

	if res != nil {
		q := res.Diagnostics.QueryPixel
		drawCircle(layer, q.X, q.Y, int(res.Diagnostics.SearchRadius+0.5), RadiusStroke)
		for i, p := range res.Polygons {
			drawBox(layer, p.PixelBounds, PolygonStroke)
			drawLabel(layer, p.PixelBounds.Min.X, p.PixelBounds.Min.Y-2, strconv.Itoa(i), LabelColor)
		}
		drawCross(layer, q.X, q.Y, 3, QueryMarker)
	}

	out := imaging.Clone(blend.Normal(base, layer))
	if opts.Scale > 1 {
		out = imaging.Resize(out, b.Dx()*opts.Scale, b.Dy()*opts.Scale, imaging.NearestNeighbor)
	}
	return out
}

// drawBox outlines r, whose Max is exclusive.
func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		setIn(img, x, r.Min.Y, c)
		setIn(img, x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		setIn(img, r.Min.X, y, c)
		setIn(img, r.Max.X-1, y, c)
	}
}

// drawLabel writes text with its baseline at (x, y).
func drawLabel(img *image.NRGBA, x, y int, text string, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawCross(img *image.NRGBA, cx, cy, arm int, c color.NRGBA) {
	for d := -arm; d <= arm; d++ {
		setIn(img, cx+d, cy, c)
		setIn(img, cx, cy+d, c)
	}
}

// drawCircle traces a circle outline with the midpoint algorithm.
func drawCircle(img *image.NRGBA, cx, cy, radius int, c color.NRGBA) {
	if radius <= 0 {
		return
	}
	x, y, err := radius, 0, 0
	for x >= y {
		for _, p := range [8][2]int{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			setIn(img, cx+p[0], cy+p[1], c)
		}
		if err <= 0 {
			y++
			err += 2*y + 1
		}
		if err > 0 {
			x--
			err -= 2*x + 1
		}
	}
}

func setIn(img *image.NRGBA, x, y int, c color.NRGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}
