package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/footprint-mcp/internal/classify"
	"github.com/ironsheep/footprint-mcp/internal/fill"
	"github.com/ironsheep/footprint-mcp/internal/footprint"
	"github.com/ironsheep/footprint-mcp/internal/geocode"
	"github.com/ironsheep/footprint-mcp/internal/raster"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

// Result sources reported by the detection tools.
const (
	SourceAuthoritative = "authoritative"
	SourceDetector      = "detector"
	SourceImage         = "image"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "building_detect", "flood_fill").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Detection failures carry {"cause": <outcome>, "detail": <message>} as
// error data; every other failure carries the message string.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		var data interface{} = err.Error()
		if cause := footprint.Outcome(err); cause != footprint.OutcomeError {
			data = map[string]interface{}{
				"cause":  cause,
				"detail": err.Error(),
			}
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", data)
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Tile math
	case "tile_locate":
		return s.handleTileLocate(args)
	case "tile_to_geo":
		return s.handleTileToGeo(args)

	// Address lookup
	case "geocode":
		return s.handleGeocode(ctx, args)

	// Building detection
	case "building_detect":
		return s.handleBuildingDetect(ctx, args)
	case "building_detect_image":
		return s.handleBuildingDetectImage(args)
	case "image_info":
		return s.handleImageInfo(args)

	// Color inspection
	case "classify_color":
		return s.handleClassifyColor(args)
	case "sample_color":
		return s.handleSampleColor(ctx, args)

	// Editing
	case "flood_fill":
		return s.handleFloodFill(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// point builds a validated GeoPoint from optional lat/lon arguments.
func point(lat, lon *float64) (tile.GeoPoint, error) {
	if lat == nil || lon == nil {
		return tile.GeoPoint{}, fmt.Errorf("lat and lon are required")
	}
	p := tile.GeoPoint{Lat: *lat, Lon: *lon}
	if err := p.Validate(); err != nil {
		return tile.GeoPoint{}, err
	}
	return p, nil
}

func (s *Server) zoomOr(zoom int) int {
	if zoom <= 0 {
		return s.opts.Zoom
	}
	return zoom
}

// tileImage fetches the tile containing p and returns it with the tile
// index and p's pixel inside it.
func (s *Server) tileImage(ctx context.Context, p tile.GeoPoint, zoom int) (image.Image, tile.TileIndex, tile.PixelCoord, error) {
	t, px := tile.GeoToTile(p, zoom)
	if s.tiles == nil {
		return nil, t, px, fmt.Errorf("%w: no tile source configured", footprint.ErrFetch)
	}
	img, err := s.tiles.Tile(ctx, t)
	if err != nil {
		return nil, t, px, err
	}
	return img, t, px, nil
}

// === Tile Math Handlers ===

type tileLocateArgs struct {
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Zoom int      `json:"zoom"`
}

type tileBounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

type tileLocateResult struct {
	Query       tile.GeoPoint   `json:"query"`
	Tile        tile.TileIndex  `json:"tile"`
	Pixel       tile.PixelCoord `json:"pixel"`
	URL         string          `json:"url"`
	Bounds      tileBounds      `json:"bounds"`
	DegPerPixel float64         `json:"deg_per_pixel"`
}

func (s *Server) handleTileLocate(args json.RawMessage) (interface{}, error) {
	var a tileLocateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := point(a.Lat, a.Lon)
	if err != nil {
		return nil, err
	}

	zoom := s.zoomOr(a.Zoom)
	t, px := tile.GeoToTile(p, zoom)
	b := t.Bound()

	return &tileLocateResult{
		Query: p,
		Tile:  t,
		Pixel: px,
		URL:   t.URL(s.tileURL),
		Bounds: tileBounds{
			West:  b.Left(),
			South: b.Bottom(),
			East:  b.Right(),
			North: b.Top(),
		},
		DegPerPixel: tile.PixelResolution(t.Zoom),
	}, nil
}

type tileToGeoArgs struct {
	Zoom   int     `json:"zoom"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	PixelX float64 `json:"pixel_x"`
	PixelY float64 `json:"pixel_y"`
}

func (s *Server) handleTileToGeo(args json.RawMessage) (interface{}, error) {
	var a tileToGeoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Zoom < 0 || a.Zoom > tile.MaxZoom {
		return nil, fmt.Errorf("zoom %d out of range [0,%d]", a.Zoom, tile.MaxZoom)
	}
	n := 1 << uint(a.Zoom)
	if a.X < 0 || a.X >= n || a.Y < 0 || a.Y >= n {
		return nil, fmt.Errorf("tile %d/%d/%d does not exist", a.Zoom, a.X, a.Y)
	}

	t := tile.TileIndex{Zoom: a.Zoom, X: a.X, Y: a.Y}
	return map[string]interface{}{
		"tile":  t,
		"point": tile.TileToGeoF(t, a.PixelX, a.PixelY),
	}, nil
}

// === Geocoding Handlers ===

type geocodeArgs struct {
	Address string `json:"address"`
}

func (s *Server) handleGeocode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a geocodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if s.geocoder == nil {
		return nil, fmt.Errorf("geocoding is not configured")
	}
	m, err := s.geocoder.Resolve(ctx, a.Address)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// === Building Detection Handlers ===

type detectArgs struct {
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	Zoom         int      `json:"zoom"`
	Tolerance    *int     `json:"tolerance"`
	SearchRadius float64  `json:"search_radius"`
}

// options overlays the request arguments on the server defaults.
func (s *Server) options(a detectArgs) footprint.Options {
	opts := s.opts
	if a.Zoom > 0 {
		opts.Zoom = a.Zoom
	}
	if a.Tolerance != nil {
		opts.Tolerance = classify.ClampTolerance(*a.Tolerance)
	}
	if a.SearchRadius > 0 {
		opts.SearchRadius = a.SearchRadius
	}
	return opts
}

type buildingDetectArgs struct {
	detectArgs
	Address string `json:"address"`
	Render  bool   `json:"render"`
	Scale   int    `json:"scale"`
}

// DetectionResult is the payload of building_detect and
// building_detect_image.
type DetectionResult struct {
	// Status is found, no_candidates or no_cluster.
	Status string `json:"status"`

	// Source names who answered: SourceAuthoritative, SourceDetector or
	// SourceImage.
	Source string `json:"source"`

	Query tile.GeoPoint `json:"query"`

	// Geocode is set when the query was an address.
	Geocode *geocode.Match `json:"geocode,omitempty"`

	Polygons []footprint.BuildingPolygon `json:"polygons"`

	// GeoJSON holds the same polygons as a FeatureCollection.
	GeoJSON *geojson.FeatureCollection `json:"geojson"`

	// Diagnostics is absent for authoritative answers.
	Diagnostics *footprint.Diagnostics `json:"diagnostics,omitempty"`

	// Overlay is the annotated tile, only when requested.
	Overlay *raster.EncodedImage `json:"overlay,omitempty"`
}

func newDetectionResult(p tile.GeoPoint, res *footprint.Result, err error, src string) *DetectionResult {
	out := &DetectionResult{
		Status:   footprint.Outcome(err),
		Source:   src,
		Query:    p,
		Polygons: []footprint.BuildingPolygon{},
		GeoJSON:  res.FeatureCollection(),
	}
	if res != nil {
		if len(res.Polygons) > 0 {
			out.Polygons = res.Polygons
		}
		d := res.Diagnostics
		out.Diagnostics = &d
	}
	return out
}

func (s *Server) handleBuildingDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a buildingDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	var (
		p     tile.GeoPoint
		match *geocode.Match
	)
	switch {
	case a.Lat != nil || a.Lon != nil:
		pt, err := point(a.Lat, a.Lon)
		if err != nil {
			return nil, err
		}
		p = pt
	case strings.TrimSpace(a.Address) != "":
		if s.geocoder == nil {
			return nil, fmt.Errorf("geocoding is not configured")
		}
		m, err := s.geocoder.Resolve(ctx, a.Address)
		if err != nil {
			return nil, err
		}
		p, match = m.Point, &m
	default:
		return nil, fmt.Errorf("either lat/lon or address is required")
	}

	opts := s.options(a.detectArgs)

	// The detector runs as the fallback source; its full result is kept
	// for diagnostics and rendering.
	var (
		res       *footprint.Result
		detectErr error
	)
	detector := footprint.SourceFunc(func(ctx context.Context, p tile.GeoPoint) ([]footprint.BuildingPolygon, error) {
		res, detectErr = s.detector.DetectWith(ctx, p, opts)
		switch {
		case errors.Is(detectErr, footprint.ErrNoCandidates), errors.Is(detectErr, footprint.ErrNoCluster):
			return nil, nil
		case detectErr != nil:
			return nil, detectErr
		}
		return res.Polygons, nil
	})
	fb := &footprint.Fallback{Primary: s.authoritative, Secondary: detector, Log: s.log}

	polys, err := fb.Buildings(ctx, p)
	if err != nil {
		return nil, err
	}

	var out *DetectionResult
	if res == nil {
		t, _ := tile.GeoToTile(p, opts.Zoom)
		auth := &footprint.Result{Polygons: polys, Diagnostics: footprint.Diagnostics{Query: p, Tile: t}}
		out = newDetectionResult(p, auth, nil, SourceAuthoritative)
		out.Diagnostics = nil
	} else {
		out = newDetectionResult(p, res, detectErr, SourceDetector)
	}
	out.Geocode = match

	if a.Render && res != nil {
		overlay, err := s.renderOverlay(ctx, res, opts, a.Scale)
		if err != nil {
			return nil, err
		}
		out.Overlay = overlay
	}

	s.log.WithFields(logrus.Fields{
		"status":   out.Status,
		"source":   out.Source,
		"polygons": len(out.Polygons),
	}).Info("building detection")

	return out, nil
}

func (s *Server) renderOverlay(ctx context.Context, res *footprint.Result, opts footprint.Options, scale int) (*raster.EncodedImage, error) {
	if s.tiles == nil {
		return nil, fmt.Errorf("%w: no tile source configured", footprint.ErrFetch)
	}
	img, err := s.tiles.Tile(ctx, res.Diagnostics.Tile)
	if err != nil {
		return nil, err
	}
	overlay := raster.RenderOverlay(img, res, raster.OverlayOptions{
		Palette:   opts.Palette,
		Tolerance: opts.Tolerance,
		Scale:     scale,
	})
	return raster.EncodePNG(overlay, 1)
}

type buildingDetectImageArgs struct {
	detectArgs
	Path string `json:"path"`
}

func (s *Server) handleBuildingDetectImage(args json.RawMessage) (interface{}, error) {
	var a buildingDetectImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := point(a.Lat, a.Lon)
	if err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := footprint.DetectImage(img, p, s.options(a.detectArgs))
	switch {
	case err == nil, errors.Is(err, footprint.ErrNoCandidates), errors.Is(err, footprint.ErrNoCluster):
		return newDetectionResult(p, res, err, SourceImage), nil
	default:
		return nil, err
	}
}

type imageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a imageInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return raster.LoadImageInfo(s.cache, a.Path)
}

// === Color Handlers ===

type classifyColorArgs struct {
	Color     string `json:"color"`
	Tolerance *int   `json:"tolerance"`
}

func (s *Server) handleClassifyColor(args json.RawMessage) (interface{}, error) {
	var a classifyColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	c, err := raster.ParseHexColor(a.Color)
	if err != nil {
		return nil, err
	}

	tol := s.opts.Tolerance
	if a.Tolerance != nil {
		tol = classify.ClampTolerance(*a.Tolerance)
	}
	rgb := classify.RGB{R: c.R, G: c.G, B: c.B}

	return map[string]interface{}{
		"hex":       rgb.Hex(),
		"rgb":       rgb,
		"class":     s.opts.Palette.Classify(c.R, c.G, c.B, tol).String(),
		"tolerance": tol,
	}, nil
}

type sampleColorArgs struct {
	Path      string   `json:"path"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Zoom      int      `json:"zoom"`
	Tolerance *int     `json:"tolerance"`
}

type sampleColorResult struct {
	*raster.ColorResult
	Tile  *tile.TileIndex `json:"tile,omitempty"`
	Pixel tile.PixelCoord `json:"pixel"`
}

func (s *Server) handleSampleColor(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	tol := s.opts.Tolerance
	if a.Tolerance != nil {
		tol = classify.ClampTolerance(*a.Tolerance)
	}

	if a.Path != "" {
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		c, err := raster.SampleColor(img, a.X, a.Y, s.opts.Palette, tol)
		if err != nil {
			return nil, err
		}
		return &sampleColorResult{ColorResult: c, Pixel: tile.PixelCoord{X: a.X, Y: a.Y}}, nil
	}

	p, err := point(a.Lat, a.Lon)
	if err != nil {
		return nil, fmt.Errorf("path or lat/lon is required: %w", err)
	}
	img, t, px, err := s.tileImage(ctx, p, s.zoomOr(a.Zoom))
	if err != nil {
		return nil, err
	}
	origin := img.Bounds().Min
	c, err := raster.SampleColor(img, origin.X+px.X, origin.Y+px.Y, s.opts.Palette, tol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", footprint.ErrOutOfBounds, err)
	}
	return &sampleColorResult{ColorResult: c, Tile: &t, Pixel: px}, nil
}

// === Editing Handlers ===

type floodFillArgs struct {
	Path      string   `json:"path"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Zoom      int      `json:"zoom"`
	X         *int     `json:"x"`
	Y         *int     `json:"y"`
	Color     string   `json:"color"`
	Tolerance *float64 `json:"tolerance"`
}

type floodFillResult struct {
	Changed   int                  `json:"changed"`
	Seed      tile.PixelCoord      `json:"seed"`
	Color     string               `json:"color"`
	Tolerance float64              `json:"tolerance"`
	Tile      *tile.TileIndex      `json:"tile,omitempty"`
	Image     *raster.EncodedImage `json:"image"`
}

func (s *Server) handleFloodFill(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a floodFillArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	c, err := raster.ParseHexColor(a.Color)
	if err != nil {
		return nil, err
	}

	tol := fill.DefaultTolerance
	if a.Tolerance != nil {
		tol = *a.Tolerance
	}

	var (
		img  image.Image
		seed tile.PixelCoord
		t    *tile.TileIndex
	)
	if a.Path != "" {
		if a.X == nil || a.Y == nil {
			return nil, fmt.Errorf("x and y are required with path")
		}
		img, err = s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		seed = tile.PixelCoord{X: *a.X, Y: *a.Y}
	} else {
		p, err := point(a.Lat, a.Lon)
		if err != nil {
			return nil, fmt.Errorf("path or lat/lon is required: %w", err)
		}
		var idx tile.TileIndex
		img, idx, seed, err = s.tileImage(ctx, p, s.zoomOr(a.Zoom))
		if err != nil {
			return nil, err
		}
		t = &idx
		if a.X != nil && a.Y != nil {
			seed = tile.PixelCoord{X: *a.X, Y: *a.Y}
		}
	}

	// ToNRGBA copies, so cached images are never modified.
	buf := raster.ToNRGBA(img)
	changed, err := fill.Fill(buf, seed.X, seed.Y, c, tol)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveFill(changed)

	enc, err := raster.EncodePNG(buf, 1)
	if err != nil {
		return nil, err
	}

	return &floodFillResult{
		Changed:   changed,
		Seed:      seed,
		Color:     a.Color,
		Tolerance: tol,
		Tile:      t,
		Image:     enc,
	}, nil
}
