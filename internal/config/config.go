// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	TileURL         string
	Zoom            int
	Tolerance       int
	SearchRadius    float64
	ClusterDistance float64
	FetchTimeout    time.Duration
	UserAgent       string
	GeocoderURL     string
	CacheTTL        time.Duration
	TileCacheSize   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MetricsAddr string
	Tracing     string

	LogLevel  string
	LogFormat string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		TileURL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Zoom:            18,
		Tolerance:       50,
		SearchRadius:    30,
		ClusterDistance: 3,
		FetchTimeout:    10 * time.Second,
		UserAgent:       "footprint-mcp/0.1",
		GeocoderURL:     "https://nominatim.openstreetmap.org",
		CacheTTL:        time.Hour,
		TileCacheSize:   512,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads the given .env files (".env" when none are named; missing
// files are ignored) and then the process environment. Variables already
// set in the environment win over .env values. The returned warnings list
// values that could not be parsed and were replaced by defaults.
func Load(files ...string) (Config, []string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, []string) {
	cfg := Default()
	r := reader{getenv: getenv}

	cfg.TileURL = r.str("FOOTPRINT_TILE_URL", cfg.TileURL)
	cfg.Zoom = r.intIn("FOOTPRINT_ZOOM", cfg.Zoom, 0, 30)
	cfg.Tolerance = r.intIn("FOOTPRINT_TOLERANCE", cfg.Tolerance, 0, 100)
	cfg.SearchRadius = r.positiveFloat("FOOTPRINT_SEARCH_RADIUS", cfg.SearchRadius)
	cfg.ClusterDistance = r.positiveFloat("FOOTPRINT_CLUSTER_DISTANCE", cfg.ClusterDistance)
	cfg.FetchTimeout = r.duration("FOOTPRINT_FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.UserAgent = r.str("FOOTPRINT_USER_AGENT", cfg.UserAgent)
	cfg.GeocoderURL = r.str("FOOTPRINT_GEOCODER_URL", cfg.GeocoderURL)
	cfg.CacheTTL = r.duration("FOOTPRINT_CACHE_TTL", cfg.CacheTTL)
	cfg.TileCacheSize = r.intIn("FOOTPRINT_TILE_CACHE_SIZE", cfg.TileCacheSize, 0, 1<<20)

	cfg.RedisAddr = r.str("FOOTPRINT_REDIS_ADDR", "")
	cfg.RedisPassword = r.str("FOOTPRINT_REDIS_PASSWORD", "")
	cfg.RedisDB = r.intIn("FOOTPRINT_REDIS_DB", 0, 0, 15)

	cfg.MetricsAddr = r.str("FOOTPRINT_METRICS_ADDR", "")
	cfg.Tracing = strings.ToLower(r.str("FOOTPRINT_TRACING", ""))

	cfg.LogLevel = r.str("FOOTPRINT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = r.str("FOOTPRINT_LOG_FORMAT", cfg.LogFormat)

	return cfg, r.warnings
}

type reader struct {
	getenv   func(string) string
	warnings []string
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) warn(key, val string, def interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q is invalid, using %v", key, val, def))
}

func (r *reader) intIn(key string, def, lo, hi int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		r.warn(key, v, def)
		return def
	}
	return n
}

func (r *reader) positiveFloat(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		r.warn(key, v, def)
		return def
	}
	return f
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.warn(key, v, def)
		return def
	}
	return d
}
