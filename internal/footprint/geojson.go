package footprint

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders the polygons as GeoJSON features. Each feature
// carries source_pixel_count and its pixel_bounds as [minX, minY, maxX, maxY]
// with an inclusive max.
func (r *Result) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if r == nil {
		return fc
	}
	for i, p := range r.Polygons {
		f := geojson.NewFeature(p.Polygon())
		f.Properties["index"] = i
		f.Properties["source_pixel_count"] = p.SourcePixelCount
		f.Properties["pixel_bounds"] = []int{
			p.PixelBounds.Min.X, p.PixelBounds.Min.Y,
			p.PixelBounds.Max.X - 1, p.PixelBounds.Max.Y - 1,
		}
		f.Properties["tile"] = r.Diagnostics.Tile.String()
		fc.Append(f)
	}
	return fc
}
