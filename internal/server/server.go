package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/footprint-mcp/internal/footprint"
	"github.com/ironsheep/footprint-mcp/internal/geocode"
	"github.com/ironsheep/footprint-mcp/internal/logging"
	"github.com/ironsheep/footprint-mcp/internal/observability"
	"github.com/ironsheep/footprint-mcp/internal/raster"
	"github.com/ironsheep/footprint-mcp/internal/source"
)

// Version is reported in the initialize handshake.
const Version = "0.1.0"

// Geocoder resolves free-text addresses.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (geocode.Match, error)
}

// Deps are the collaborators a Server uses. Every field is optional.
type Deps struct {
	// Tiles supplies map tiles for detection, sampling and fills.
	Tiles footprint.TileSource

	// Geocoder resolves the address argument of building_detect.
	Geocoder Geocoder

	// Authoritative is consulted before the detector when set.
	Authoritative footprint.Source

	// Options are the detection defaults; nil means
	// footprint.DefaultOptions().
	Options *footprint.Options

	// TileURL is the template reported by tile_locate. Empty means
	// source.DefaultTemplate.
	TileURL string

	Metrics *observability.Collector
	Log     logrus.FieldLogger
}

// Server handles MCP protocol communication
type Server struct {
	cache         *raster.ImageCache
	tiles         footprint.TileSource
	detector      *footprint.Detector
	geocoder      Geocoder
	authoritative footprint.Source
	opts          footprint.Options
	tileURL       string
	metrics       *observability.Collector
	log           logrus.FieldLogger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(deps Deps) *Server {
	opts := footprint.DefaultOptions()
	if deps.Options != nil {
		opts = *deps.Options
	}
	log := logging.OrDiscard(deps.Log)
	tileURL := deps.TileURL
	if tileURL == "" {
		tileURL = source.DefaultTemplate
	}

	d := footprint.NewDetector(deps.Tiles, opts, log, deps.Metrics)
	return &Server{
		cache:         raster.NewImageCache(),
		tiles:         deps.Tiles,
		detector:      d,
		geocoder:      deps.Geocoder,
		authoritative: deps.Authoritative,
		opts:          d.Options(),
		tileURL:       tileURL,
		metrics:       deps.Metrics,
		log:           log,
	}
}

// Run serves requests from stdin and writes responses to stdout until
// stdin closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.WithField("method", req.Method).Debug("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "footprint-mcp",
				"version": Version,
			},
		},
	}
}

// handleToolsList returns every tool definition.
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
