package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/footprint-mcp/internal/config"
	"github.com/ironsheep/footprint-mcp/internal/footprint"
	"github.com/ironsheep/footprint-mcp/internal/geocode"
	"github.com/ironsheep/footprint-mcp/internal/logging"
	"github.com/ironsheep/footprint-mcp/internal/observability"
	"github.com/ironsheep/footprint-mcp/internal/server"
	"github.com/ironsheep/footprint-mcp/internal/source"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("footprint-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("footprint-mcp - MCP server for building footprint detection on map tiles")
			fmt.Println()
			fmt.Println("Usage: footprint-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from .env):")
			fmt.Println("  FOOTPRINT_TILE_URL           Tile URL template with {z}, {x}, {y}")
			fmt.Println("  FOOTPRINT_ZOOM               Detection zoom level (default 18)")
			fmt.Println("  FOOTPRINT_TOLERANCE          Color tolerance 0-100 (default 50)")
			fmt.Println("  FOOTPRINT_SEARCH_RADIUS      Search radius in pixels (default 30)")
			fmt.Println("  FOOTPRINT_GEOCODER_URL       Nominatim-compatible geocoder")
			fmt.Println("  FOOTPRINT_REDIS_ADDR         Cache tiles in Redis instead of memory")
			fmt.Println("  FOOTPRINT_METRICS_ADDR       Serve Prometheus metrics, e.g. :9090")
			fmt.Println("  FOOTPRINT_TRACING=stdout     Print trace spans to stderr")
			fmt.Println("  FOOTPRINT_LOG_LEVEL=debug    Enable debug logging")
			fmt.Println("  FOOTPRINT_LOG_FORMAT=json    Log as JSON")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, warnings := config.Load()

	// Logs go to stderr; stdout is for the MCP protocol.
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	for _, w := range warnings {
		log.Warn(w)
	}
	log.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("footprint MCP server starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Exporter:    cfg.Tracing,
		ServiceName: "footprint-mcp",
	}, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	var cache source.Cache
	if rdb := source.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); rdb != nil {
		defer rdb.Close()
		cache = source.NewRedisCache(rdb)
		log.WithField("addr", cfg.RedisAddr).Info("caching tiles in redis")
	} else {
		mem := source.NewMemoryCache(cfg.TileCacheSize)
		defer mem.Stop()
		cache = mem
	}

	tiles := source.NewHTTPSource(source.Config{
		Template:  cfg.TileURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
		CacheTTL:  cfg.CacheTTL,
	}, cache, log, metrics)

	geo := geocode.New(geocode.Config{
		BaseURL:   cfg.GeocoderURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
		CacheTTL:  cfg.CacheTTL,
	}, log)
	defer geo.Stop()

	opts := footprint.DefaultOptions()
	opts.Zoom = cfg.Zoom
	opts.Tolerance = cfg.Tolerance
	opts.SearchRadius = cfg.SearchRadius
	opts.ClusterDistance = cfg.ClusterDistance

	srv := server.New(server.Deps{
		Tiles:    tiles,
		Geocoder: geo,
		Options:  &opts,
		TileURL:  cfg.TileURL,
		Metrics:  metrics,
		Log:      log,
	})

	err = srv.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func metricsMux(metrics *observability.Collector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
