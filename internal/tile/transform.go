package tile

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// TileSize is the width and height of a tile image in pixels.
	TileSize = 256

	// DefaultZoom is the zoom level used for building detection.
	DefaultZoom = 18

	// MaxZoom bounds the zoom level so that 2^zoom fits the tile index types.
	MaxZoom = 30

	// MaxLatitude is the northern limit of the Web Mercator projection.
	MaxLatitude = 85.0511287798
)

// ErrInvalidPoint is returned by GeoPoint.Validate for unusable coordinates.
var ErrInvalidPoint = errors.New("invalid geographic point")

// GeoPoint is a WGS84 latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidPoint)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f outside [-90,90]", ErrInvalidPoint, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %f outside [-180,180]", ErrInvalidPoint, p.Lon)
	}
	return nil
}

// Orb returns the point in orb's lon/lat order.
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// TileIndex identifies one tile of the slippy-map pyramid.
type TileIndex struct {
	Zoom int `json:"zoom"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// PixelCoord is a pixel offset inside one tile image.
type PixelCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the tile in z/x/y form.
func (t TileIndex) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Maptile converts the index to orb's tile type.
func (t TileIndex) Maptile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// Bound returns the geographic extent covered by the tile.
func (t TileIndex) Bound() orb.Bound {
	return t.Maptile().Bound()
}

// URL expands a tile URL template. The placeholders {z}, {x} and {y} are
// replaced by the tile's zoom, column and row.
func (t TileIndex) URL(template string) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Zoom),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	)
	return r.Replace(template)
}

// GeoToTile projects a point to the tile containing it and the pixel offset
// of the point inside that tile.
//
// The tile column is floor((lon+180)/360 * n) and the row is
// floor((1 - asinh(tan(lat))/π)/2 * n) with n = 2^zoom. The pixel offset is
// the fractional remainder scaled by TileSize and floored.
//
// Out-of-range latitudes and longitudes are clamped (see package docs). A
// longitude of exactly 180 lands in the last column at pixel 255.
func GeoToTile(p GeoPoint, zoom int) (TileIndex, PixelCoord) {
	zoom = clampZoom(zoom)
	lat := clamp(p.Lat, -MaxLatitude, MaxLatitude)
	lon := clamp(p.Lon, -180, 180)

	n := float64(uint64(1) << uint(zoom))
	latRad := lat * math.Pi / 180

	fx := (lon + 180) / 360 * n
	fy := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n

	tx, px := split(fx, n)
	ty, py := split(fy, n)

	return TileIndex{Zoom: zoom, X: tx, Y: ty}, PixelCoord{X: px, Y: py}
}

// TileToGeo projects a pixel of a tile back to geographic coordinates. It
// returns the location of the pixel's top-left corner.
func TileToGeo(t TileIndex, px PixelCoord) GeoPoint {
	return TileToGeoF(t, float64(px.X), float64(px.Y))
}

// TileToGeoF is TileToGeo with fractional pixel offsets. Offsets may fall
// outside [0, TileSize); the result then lies in a neighbouring tile.
func TileToGeoF(t TileIndex, pixelX, pixelY float64) GeoPoint {
	n := float64(uint64(1) << uint(clampZoom(t.Zoom)))

	x := float64(t.X) + pixelX/TileSize
	y := float64(t.Y) + pixelY/TileSize

	lon := x/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi

	return GeoPoint{Lat: lat, Lon: lon}
}

// PixelResolution returns the angular width, in degrees of longitude, of a
// single pixel at the given zoom level.
func PixelResolution(zoom int) float64 {
	n := float64(uint64(1) << uint(clampZoom(zoom)))
	return 360 / (n * TileSize)
}

// split separates a continuous tile coordinate into a tile index and a pixel
// offset, keeping both inside the valid range.
func split(f, n float64) (int, int) {
	if f < 0 {
		f = 0
	}
	idx := math.Floor(f)
	if idx >= n {
		return int(n) - 1, TileSize - 1
	}
	px := int(math.Floor((f - idx) * TileSize))
	if px >= TileSize {
		px = TileSize - 1
	}
	return int(idx), px
}

func clampZoom(zoom int) int {
	if zoom < 0 {
		return 0
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
