package footprint

import (
	"image"

	"github.com/paulmach/orb"

	"github.com/ironsheep/footprint-mcp/internal/cluster"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

// MinClusterSize is the smallest cluster that becomes a polygon. Smaller
// clusters are treated as classification noise.
const MinClusterSize = 5

// BuildingPolygon is the rectangular approximation of one building.
type BuildingPolygon struct {
	// Ring holds five lon/lat points; the last repeats the first.
	Ring orb.Ring `json:"ring"`

	// SourcePixelCount is the number of pixels in the originating cluster.
	SourcePixelCount int `json:"source_pixel_count"`

	// PixelBounds is the cluster's bounding box in tile pixels, with an
	// exclusive Max.
	PixelBounds image.Rectangle `json:"pixel_bounds"`
}

// Polygon returns the ring as a single-ring orb polygon.
func (b BuildingPolygon) Polygon() orb.Polygon {
	return orb.Polygon{b.Ring}
}

// Closed reports whether the ring's first and last points coincide.
func (b BuildingPolygon) Closed() bool {
	return len(b.Ring) > 0 && b.Ring.Closed()
}

// ToPolygon converts a cluster from tile t into a building polygon. It
// returns false when the cluster has fewer than MinClusterSize pixels.
func ToPolygon(c cluster.PixelCluster, t tile.TileIndex) (BuildingPolygon, bool) {
	return toPolygon(c, t, MinClusterSize)
}

func toPolygon(c cluster.PixelCluster, t tile.TileIndex, minSize int) (BuildingPolygon, bool) {
	if c.Len() == 0 || c.Len() < minSize {
		return BuildingPolygon{}, false
	}

	b := c.Bounds()
	minX, minY := b.Min.X, b.Min.Y
	maxX, maxY := b.Max.X-1, b.Max.Y-1

	corners := []tile.PixelCoord{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
		{X: minX, Y: minY},
	}

	ring := make(orb.Ring, len(corners))
	for i, px := range corners {
		ring[i] = tile.TileToGeo(t, px).Orb()
	}

	return BuildingPolygon{
		Ring:             ring,
		SourcePixelCount: c.Len(),
		PixelBounds:      b,
	}, true
}
