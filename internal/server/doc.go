// Package server implements the MCP (Model Context Protocol) server for
// building footprint detection on raster map tiles.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs never go to stdout.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Tile math:
//   - tile_locate: Tile index and pixel for a coordinate
//   - tile_to_geo: Coordinate of a tile pixel
//
// Address lookup:
//   - geocode: Address to coordinate
//
// Building detection:
//   - building_detect: Footprints near a coordinate or address
//   - building_detect_image: Footprints on a local tile image
//   - image_info: Dimensions and format of a local image
//
// Color inspection:
//   - classify_color: Palette class of a hex color
//   - sample_color: Color and class of one pixel
//
// Editing:
//   - flood_fill: Repaint a connected region
//
// building_detect asks the authoritative source first when one is
// configured and falls back to the tile detector. Its status is found,
// no_candidates or no_cluster; an empty answer is not an error.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"cause", "detail"} for detection failures such as
//     fetch_error, otherwise the Go error string
//
// # Usage
//
//	srv := server.New(server.Deps{Tiles: tiles, Geocoder: geo, Log: log})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
