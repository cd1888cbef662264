package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/footprint-mcp/internal/footprint"
	"github.com/ironsheep/footprint-mcp/internal/logging"
	"github.com/ironsheep/footprint-mcp/internal/tile"
)

const (
	// DefaultTemplate is the public OpenStreetMap raster tile endpoint.
	DefaultTemplate = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

	// DefaultUserAgent identifies the client to tile servers.
	DefaultUserAgent = "footprint-mcp/0.1"

	// maxTileBytes caps a single tile download.
	maxTileBytes = 8 << 20
)

// Fetch outcomes used as metric labels.
const (
	FetchOK        = "ok"
	FetchCached    = "cached"
	FetchHTTPError = "http_error"
	FetchError     = "error"
	FetchBadImage  = "decode_error"
)

// FetchRecorder receives one observation per tile request.
type FetchRecorder interface {
	ObserveFetch(outcome string, elapsed time.Duration)
}

// Config holds the HTTPSource settings. Zero fields take defaults.
type Config struct {
	// Template is the tile URL with {z}, {x} and {y} placeholders.
	// Defaults to DefaultTemplate.
	Template string

	// UserAgent is sent on every download. Defaults to DefaultUserAgent.
	UserAgent string

	// Timeout bounds one download. Defaults to 10 seconds.
	Timeout time.Duration

	// CacheTTL is how long a downloaded tile stays cached. Zero keeps it
	// until the cache evicts it.
	CacheTTL time.Duration
}

// HTTPSource downloads tiles from a templated URL. It implements
// footprint.TileSource.
type HTTPSource struct {
	template  string
	userAgent string
	ttl       time.Duration
	client    *http.Client
	cache     Cache
	log       logrus.FieldLogger
	metrics   FetchRecorder
	tracer    trace.Tracer
	inflight  singleflight.Group
}

// NewHTTPSource creates a source. cache, log and metrics may be nil.
func NewHTTPSource(cfg Config, cache Cache, log logrus.FieldLogger, metrics FetchRecorder) *HTTPSource {
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPSource{
		template:  cfg.Template,
		userAgent: cfg.UserAgent,
		ttl:       cfg.CacheTTL,
		client:    &http.Client{Timeout: cfg.Timeout},
		cache:     cache,
		log:       logging.OrDiscard(log),
		metrics:   metrics,
		tracer:    otel.Tracer("github.com/ironsheep/footprint-mcp/internal/source"),
	}
}

// Tile returns the decoded image for t.
//
// Parameters:
//   - ctx: cancels the download.
//   - t: the tile to fetch.
//
// Returns:
//   - The decoded image, or an error wrapping footprint.ErrFetch when the
//     download fails and footprint.ErrDecode when the bytes are not an image.
func (s *HTTPSource) Tile(ctx context.Context, t tile.TileIndex) (image.Image, error) {
	data, err := s.Bytes(ctx, t)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		s.observe(FetchBadImage, 0)
		return nil, fmt.Errorf("%w: tile %s: %v", footprint.ErrDecode, t, err)
	}
	return img, nil
}

// Bytes returns the raw encoded tile, from the cache when possible.
func (s *HTTPSource) Bytes(ctx context.Context, t tile.TileIndex) ([]byte, error) {
	key := t.String()

	if data, ok := s.cached(ctx, key); ok {
		s.observe(FetchCached, 0)
		return data, nil
	}

	v, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		data, err := s.download(ctx, t)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				s.log.WithError(err).WithField("tile", key).Warn("tile cache write failed")
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.WithField("tile", key).Debug("shared in-flight tile download")
	}
	return v.([]byte), nil
}

func (s *HTTPSource) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("tile", key).Warn("tile cache read failed")
		return nil, false
	}
	return data, ok
}

func (s *HTTPSource) download(ctx context.Context, t tile.TileIndex) ([]byte, error) {
	url := t.URL(s.template)
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "source.Download", trace.WithAttributes(
		attribute.String("tile", t.String()),
		attribute.String("http.url", url),
	))
	defer span.End()

	fail := func(outcome string, err error) ([]byte, error) {
		s.observe(outcome, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.WithFields(logrus.Fields{
			"tile":        t.String(),
			"url":         url,
			"duration_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Warn("tile download failed")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(FetchError, fmt.Errorf("%w: failed to build request: %v", footprint.ErrFetch, err))
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "image/png,image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(FetchError, fmt.Errorf("%w: %s: %v", footprint.ErrFetch, url, err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fail(FetchHTTPError, fmt.Errorf("%w: %s: status %d", footprint.ErrFetch, url, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return fail(FetchError, fmt.Errorf("%w: failed to read body: %v", footprint.ErrFetch, err))
	}

	elapsed := time.Since(start)
	s.observe(FetchOK, elapsed)
	s.log.WithFields(logrus.Fields{
		"tile":        t.String(),
		"bytes":       len(data),
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("tile downloaded")
	return data, nil
}

func (s *HTTPSource) observe(outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveFetch(outcome, elapsed)
	}
}
