package footprint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/footprint-mcp/internal/classify"
	"github.com/ironsheep/footprint-mcp/internal/cluster"
	"github.com/ironsheep/footprint-mcp/internal/logging"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

const tracerName = "github.com/ironsheep/footprint-mcp/internal/footprint"

// Detection errors, see the package documentation.
var (
	ErrFetch        = errors.New("tile fetch failed")
	ErrDecode       = errors.New("tile decode failed")
	ErrOutOfBounds  = errors.New("query pixel outside tile")
	ErrNoCandidates = errors.New("no building pixels near query point")
	ErrNoCluster    = errors.New("no cluster large enough for a building")
)

// Detection outcomes used as metric labels and tool statuses.
const (
	OutcomeFound        = "found"
	OutcomeNoCandidates = "no_candidates"
	OutcomeNoCluster    = "no_cluster"
	OutcomeFetchError   = "fetch_error"
	OutcomeDecodeError  = "decode_error"
	OutcomeOutOfBounds  = "out_of_bounds"
	OutcomeInvalidPoint = "invalid_point"
	OutcomeError        = "error"
)

// Outcome maps the error returned by a detection to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeFound
	case errors.Is(err, ErrNoCandidates):
		return OutcomeNoCandidates
	case errors.Is(err, ErrNoCluster):
		return OutcomeNoCluster
	case errors.Is(err, ErrFetch):
		return OutcomeFetchError
	case errors.Is(err, ErrDecode):
		return OutcomeDecodeError
	case errors.Is(err, ErrOutOfBounds):
		return OutcomeOutOfBounds
	case errors.Is(err, tile.ErrInvalidPoint):
		return OutcomeInvalidPoint
	default:
		return OutcomeError
	}
}

// Options tunes a detection. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// Zoom is the tile zoom level, 0 to tile.MaxZoom.
	Zoom int

	// Tolerance is the Manhattan RGB tolerance for palette matches,
	// clamped to 0..255.
	Tolerance int

	// SearchRadius is the distance in pixels from the query pixel within
	// which building pixels become candidates.
	SearchRadius float64

	// ClusterDistance is the maximum Euclidean pixel distance linking two
	// candidates into one cluster.
	ClusterDistance float64

	// MinClusterSize is the smallest cluster kept as a building.
	MinClusterSize int

	// Palette holds the building and boundary reference colors.
	Palette classify.Palette
}

// DefaultOptions returns zoom 18, tolerance 50, a 30 px search radius,
// cluster distance 3, minimum cluster size 5 and the default palette.
func DefaultOptions() Options {
	return Options{
		Zoom:            tile.DefaultZoom,
		Tolerance:       classify.DefaultTolerance,
		SearchRadius:    30,
		ClusterDistance: cluster.DefaultMaxDistance,
		MinClusterSize:  MinClusterSize,
		Palette:         classify.DefaultPalette(),
	}
}

// normalized replaces unusable fields with their defaults.
func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Zoom < 0 || o.Zoom > tile.MaxZoom {
		o.Zoom = def.Zoom
	}
	o.Tolerance = classify.ClampTolerance(o.Tolerance)
	if o.SearchRadius <= 0 {
		o.SearchRadius = def.SearchRadius
	}
	if o.ClusterDistance < 0 {
		o.ClusterDistance = def.ClusterDistance
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = def.MinClusterSize
	}
	if len(o.Palette.Building) == 0 && len(o.Palette.Boundary) == 0 {
		o.Palette = def.Palette
	}
	return o
}

// Diagnostics records what one detection saw. It is built once when the
// detection finishes.
type Diagnostics struct {
	Query      tile.GeoPoint   `json:"query"`
	Tile       tile.TileIndex  `json:"tile"`
	QueryPixel tile.PixelCoord `json:"query_pixel"`

	// Pixel counts over the whole tile.
	PixelsScanned  int `json:"pixels_scanned"`
	BuildingPixels int `json:"building_pixels"`
	BoundaryPixels int `json:"boundary_pixels"`

	// Candidates counts building pixels inside the search radius.
	Candidates int `json:"candidates"`

	// Clusters found among the candidates, split by the minimum size.
	Clusters          int `json:"clusters"`
	ClustersKept      int `json:"clusters_kept"`
	ClustersDiscarded int `json:"clusters_discarded"`

	// Effective options after normalization.
	Tolerance    int     `json:"tolerance"`
	SearchRadius float64 `json:"search_radius"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

// Result is the outcome of one detection.
type Result struct {
	// Polygons holds one footprint per kept cluster, in row-major order of
	// each cluster's first pixel.
	Polygons []BuildingPolygon `json:"polygons"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// TileSource supplies decoded tile images. Implementations wrap transport
// failures in ErrFetch and unreadable bytes in ErrDecode.
type TileSource interface {
	Tile(ctx context.Context, t tile.TileIndex) (image.Image, error)
}

// Recorder receives one observation per finished detection.
type Recorder interface {
	ObserveDetection(outcome string, elapsed time.Duration)
}

// DetectImage runs the scan, filter, cluster and convert steps on an already
// decoded tile image.
//
// Parameters:
//   - img: a tile.TileSize square image, treated as the tile containing p at
//     opts.Zoom with pixel (0,0) at img.Bounds().Min.
//   - p: the query point.
//   - opts: detection options; unusable fields fall back to DefaultOptions.
//
// Returns:
//   - The polygons near p with diagnostics, or an error wrapping ErrDecode
//     (nil image), ErrOutOfBounds (image not tile-sized) or
//     tile.ErrInvalidPoint. A nil result accompanies every error.
func DetectImage(img image.Image, p tile.GeoPoint, opts Options) (*Result, error) {
	start := time.Now()
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrDecode)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() != tile.TileSize || bounds.Dy() != tile.TileSize {
		return nil, fmt.Errorf("%w: image %dx%d, want %dx%d",
			ErrOutOfBounds, bounds.Dx(), bounds.Dy(), tile.TileSize, tile.TileSize)
	}
	opts = opts.normalized()

	t, q := tile.GeoToTile(p, opts.Zoom)

	var (
		buildingPixels int
		boundaryPixels int
		candidates     []tile.PixelCoord
	)
	rSq := opts.SearchRadius * opts.SearchRadius
	nrgba, isNRGBA := img.(*image.NRGBA)

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			var c color.NRGBA
			if isNRGBA {
				c = nrgba.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			} else {
				c = color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			}

			switch opts.Palette.Classify(c.R, c.G, c.B, opts.Tolerance) {
			case classify.Building:
				buildingPixels++
				dx := float64(x - q.X)
				dy := float64(y - q.Y)
				if dx*dx+dy*dy <= rSq {
					candidates = append(candidates, tile.PixelCoord{X: x, Y: y})
				}
			case classify.Boundary:
				boundaryPixels++
			}
		}
	}

	var (
		clusters []cluster.PixelCluster
		polygons = make([]BuildingPolygon, 0)
	)
	if len(candidates) > 0 {
		clusters = cluster.Cluster(candidates, opts.ClusterDistance)
		for _, c := range clusters {
			if poly, ok := toPolygon(c, t, opts.MinClusterSize); ok {
				polygons = append(polygons, poly)
			}
		}
	}

	res := &Result{
		Polygons: polygons,
		Diagnostics: Diagnostics{
			Query:             p,
			Tile:              t,
			QueryPixel:        q,
			PixelsScanned:     bounds.Dx() * bounds.Dy(),
			BuildingPixels:    buildingPixels,
			BoundaryPixels:    boundaryPixels,
			Candidates:        len(candidates),
			Clusters:          len(clusters),
			ClustersKept:      len(polygons),
			ClustersDiscarded: len(clusters) - len(polygons),
			Tolerance:         opts.Tolerance,
			SearchRadius:      opts.SearchRadius,
			Elapsed:           time.Since(start),
		},
	}

	switch {
	case len(candidates) == 0:
		return res, fmt.Errorf("%w: radius %.0f px around (%d,%d)", ErrNoCandidates, opts.SearchRadius, q.X, q.Y)
	case len(polygons) == 0:
		return res, fmt.Errorf("%w: %d clusters below %d pixels", ErrNoCluster, len(clusters), opts.MinClusterSize)
	}
	return res, nil
}

// Detector fetches tiles from a TileSource and runs DetectImage on them.
type Detector struct {
	source  TileSource
	opts    Options
	log     logrus.FieldLogger
	metrics Recorder
	tracer  trace.Tracer
}

// NewDetector creates a detector.
//
// Parameters:
//   - source: supplies tiles for Detect and DetectWith.
//   - opts: default options; unusable fields fall back to DefaultOptions.
//   - log, metrics: optional; nil discards them.
func NewDetector(source TileSource, opts Options, log logrus.FieldLogger, metrics Recorder) *Detector {
	return &Detector{
		source:  source,
		opts:    opts.normalized(),
		log:     logging.OrDiscard(log),
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Options returns the detector's effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// Detect locates buildings around p using the detector's options.
func (d *Detector) Detect(ctx context.Context, p tile.GeoPoint) (*Result, error) {
	return d.DetectWith(ctx, p, d.opts)
}

// DetectWith is Detect with per-call options.
func (d *Detector) DetectWith(ctx context.Context, p tile.GeoPoint, opts Options) (*Result, error) {
	start := time.Now()
	opts = opts.normalized()

	ctx, span := d.tracer.Start(ctx, "footprint.Detect", trace.WithAttributes(
		attribute.Float64("geo.lat", p.Lat),
		attribute.Float64("geo.lon", p.Lon),
		attribute.Int("tile.zoom", opts.Zoom),
		attribute.Int("footprint.tolerance", opts.Tolerance),
	))
	defer span.End()

	res, err := d.detect(ctx, p, opts)

	outcome := Outcome(err)
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.ObserveDetection(outcome, elapsed)
	}
	span.SetAttributes(attribute.String("footprint.outcome", outcome))

	fields := logrus.Fields{
		"lat":         p.Lat,
		"lon":         p.Lon,
		"outcome":     outcome,
		"duration_ms": elapsed.Milliseconds(),
	}
	if res != nil {
		fields["tile"] = res.Diagnostics.Tile.String()
		fields["candidates"] = res.Diagnostics.Candidates
		fields["polygons"] = len(res.Polygons)
	}

	switch outcome {
	case OutcomeFound, OutcomeNoCandidates, OutcomeNoCluster:
		d.log.WithFields(fields).Debug("detection finished")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.log.WithFields(fields).WithError(err).Warn("detection failed")
	}

	return res, err
}

func (d *Detector) detect(ctx context.Context, p tile.GeoPoint, opts Options) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if d.source == nil {
		return nil, fmt.Errorf("%w: no tile source configured", ErrFetch)
	}

	t, _ := tile.GeoToTile(p, opts.Zoom)
	img, err := d.source.Tile(ctx, t)
	if err != nil {
		if errors.Is(err, ErrFetch) || errors.Is(err, ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: tile %s: %v", ErrFetch, t, err)
	}

	return DetectImage(img, p, opts)
}

// Buildings implements Source. Running out of candidates or clusters is a
// definitive empty answer rather than an error.
func (d *Detector) Buildings(ctx context.Context, p tile.GeoPoint) ([]BuildingPolygon, error) {
	res, err := d.Detect(ctx, p)
	switch {
	case errors.Is(err, ErrNoCandidates), errors.Is(err, ErrNoCluster):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return res.Polygons, nil
}
