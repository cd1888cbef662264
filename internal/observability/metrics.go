// Package observability holds the Prometheus collector and OpenTelemetry
// setup for the server.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes footprint metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Detections        *prometheus.CounterVec
	DetectDuration    prometheus.Histogram
	TileFetches       *prometheus.CounterVec
	TileFetchDuration prometheus.Histogram
	TileCacheHits     prometheus.Counter
	FloodFillPixels   prometheus.Counter
}

// NewCollector registers the metrics against reg, or the default registerer
// when reg is nil. Registering twice on the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	detections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footprint_detections_total",
		Help: "Building detections by outcome.",
	}, []string{"outcome"}), "footprint_detections_total")
	if err != nil {
		return nil, err
	}

	detectDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "footprint_detect_duration_seconds",
		Help:    "Duration of building detections including the tile fetch.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}), "footprint_detect_duration_seconds")
	if err != nil {
		return nil, err
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footprint_tile_fetch_total",
		Help: "Tile requests by outcome.",
	}, []string{"outcome"}), "footprint_tile_fetch_total")
	if err != nil {
		return nil, err
	}

	fetchDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "footprint_tile_fetch_duration_seconds",
		Help:    "Duration of tile downloads.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}), "footprint_tile_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	cacheHits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "footprint_tile_cache_hits_total",
		Help: "Tiles served from the tile cache.",
	}), "footprint_tile_cache_hits_total")
	if err != nil {
		return nil, err
	}

	fillPixels, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "footprint_flood_fill_pixels_total",
		Help: "Pixels repainted by flood fills.",
	}), "footprint_flood_fill_pixels_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Detections:        detections,
		DetectDuration:    detectDuration,
		TileFetches:       fetches,
		TileFetchDuration: fetchDuration,
		TileCacheHits:     cacheHits,
		FloodFillPixels:   fillPixels,
	}, nil
}

// Gatherer returns the gatherer paired with the registerer.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveDetection records one finished detection.
func (c *Collector) ObserveDetection(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Detections.WithLabelValues(outcome).Inc()
	c.DetectDuration.Observe(elapsed.Seconds())
}

// ObserveFetch records one tile request. Cached responses count as cache
// hits and are left out of the duration histogram.
func (c *Collector) ObserveFetch(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.TileFetches.WithLabelValues(outcome).Inc()
	if outcome == "cached" {
		c.TileCacheHits.Inc()
		return
	}
	if elapsed > 0 {
		c.TileFetchDuration.Observe(elapsed.Seconds())
	}
}

// ObserveFill adds the pixels changed by one flood fill.
func (c *Collector) ObserveFill(changed int) {
	if c == nil || changed <= 0 {
		return
	}
	c.FloodFillPixels.Add(float64(changed))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
