package footprint

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/footprint-mcp/internal/logging"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

// ErrUnavailable is returned by a Source that cannot answer at all.
var ErrUnavailable = errors.New("building source unavailable")

// Source returns the building polygons at a point. An empty slice with a
// nil error means the source is sure there are none.
type Source interface {
	Buildings(ctx context.Context, p tile.GeoPoint) ([]BuildingPolygon, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, p tile.GeoPoint) ([]BuildingPolygon, error)

// Buildings calls f.
func (f SourceFunc) Buildings(ctx context.Context, p tile.GeoPoint) ([]BuildingPolygon, error) {
	return f(ctx, p)
}

// Fallback asks Primary first and Secondary only when Primary returns no
// polygons or fails. Secondary's answer is final.
type Fallback struct {
	Primary   Source
	Secondary Source
	Log       logrus.FieldLogger
}

// Buildings implements Source.
func (f *Fallback) Buildings(ctx context.Context, p tile.GeoPoint) ([]BuildingPolygon, error) {
	log := logging.OrDiscard(f.Log).WithFields(logrus.Fields{"lat": p.Lat, "lon": p.Lon})

	if f.Primary != nil {
		polys, err := f.Primary.Buildings(ctx, p)
		switch {
		case err == nil && len(polys) > 0:
			return polys, nil
		case err == nil:
			log.Debug("primary source returned no buildings, falling back")
		case errors.Is(err, ErrUnavailable):
			log.Debug("primary source unavailable, falling back")
		default:
			log.WithError(err).Warn("primary source failed, falling back")
		}
	}

	if f.Secondary == nil {
		return nil, ErrUnavailable
	}
	return f.Secondary.Buildings(ctx, p)
}
