package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Tile math
		{
			Name:        "tile_locate",
			Description: "Project a latitude/longitude onto the Web Mercator tile grid. Returns the tile index, the pixel inside the 256x256 tile, the tile URL and the ground resolution.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lat":  prop("number", "Latitude in degrees (-85.05 to 85.05)"),
					"lon":  prop("number", "Longitude in degrees (-180 to 180)"),
					"zoom": prop("integer", "Zoom level (default: 18)"),
				},
				"required": []string{"lat", "lon"},
			},
		},
		{
			Name:        "tile_to_geo",
			Description: "Convert a pixel inside a tile back to latitude/longitude. Without pixel coordinates the tile's top-left corner is returned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"zoom":    prop("integer", "Zoom level"),
					"x":       prop("integer", "Tile column"),
					"y":       prop("integer", "Tile row"),
					"pixel_x": prop("number", "Pixel X inside the tile (0-256, default: 0)"),
					"pixel_y": prop("number", "Pixel Y inside the tile (0-256, default: 0)"),
				},
				"required": []string{"zoom", "x", "y"},
			},
		},

		// Address lookup
		{
			Name:        "geocode",
			Description: "Resolve a free-text address to coordinates. Progressively relaxed variants of the address are tried before falling back to a small table of well-known places.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"address": prop("string", "Address or place name"),
				},
				"required": []string{"address"},
			},
		},

		// Building detection
		{
			Name:        "building_detect",
			Description: "Find building footprints near a location on the rendered map tile. Give either lat/lon or an address. Returns polygons, a GeoJSON FeatureCollection and detection diagnostics; set render to also get a PNG overlay.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"lat":           prop("number", "Latitude in degrees"),
					"lon":           prop("number", "Longitude in degrees"),
					"address":       prop("string", "Address to geocode when lat/lon are omitted"),
					"zoom":          prop("integer", "Tile zoom level (default: 18)"),
					"tolerance":     prop("integer", "Color tolerance 0-100 (default: 50)"),
					"search_radius": prop("number", "Search radius in pixels around the query point (default: 30)"),
					"render":        prop("boolean", "Include a PNG overlay of the detection (default: false)"),
					"scale":         prop("integer", "Overlay enlargement factor (default: 1)"),
				},
			},
		},
		{
			Name:        "building_detect_image",
			Description: "Run building detection on a local tile image. The image must be the tile that contains lat/lon at the given zoom.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":          prop("string", "Absolute path to the tile image"),
					"lat":           prop("number", "Latitude in degrees"),
					"lon":           prop("number", "Longitude in degrees"),
					"zoom":          prop("integer", "Zoom level of the tile (default: 18)"),
					"tolerance":     prop("integer", "Color tolerance 0-100 (default: 50)"),
					"search_radius": prop("number", "Search radius in pixels (default: 30)"),
				},
				"required": []string{"path", "lat", "lon"},
			},
		},

		{
			Name:        "image_info",
			Description: "Report the dimensions, format and file size of a local image and whether it has tile dimensions (256x256).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": prop("string", "Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Color inspection
		{
			Name:        "classify_color",
			Description: "Classify a color as building, boundary or none against the building palette.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"color":     prop("string", "Hex color, e.g. #FFE6BE"),
					"tolerance": prop("integer", "Color tolerance 0-100 (default: 50)"),
				},
				"required": []string{"color"},
			},
		},
		{
			Name:        "sample_color",
			Description: "Read the color of one pixel and classify it. Give path with x/y for a local image, or lat/lon to sample the map tile at that location.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      prop("string", "Absolute path to the image file"),
					"x":         prop("integer", "X coordinate (0-based)"),
					"y":         prop("integer", "Y coordinate (0-based)"),
					"lat":       prop("number", "Latitude in degrees"),
					"lon":       prop("number", "Longitude in degrees"),
					"zoom":      prop("integer", "Tile zoom level (default: 18)"),
					"tolerance": prop("integer", "Color tolerance 0-100 (default: 50)"),
				},
			},
		},

		// Editing
		{
			Name:        "flood_fill",
			Description: "Flood fill the 4-connected region around a seed pixel with a color and return the edited image as base64 PNG. Give path for a local image, or lat/lon to fill the map tile at that location (the seed is then the location's pixel unless x/y are given).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      prop("string", "Absolute path to the image file"),
					"lat":       prop("number", "Latitude in degrees"),
					"lon":       prop("number", "Longitude in degrees"),
					"zoom":      prop("integer", "Tile zoom level (default: 18)"),
					"x":         prop("integer", "Seed X coordinate"),
					"y":         prop("integer", "Seed Y coordinate"),
					"color":     prop("string", "Fill color as #RRGGBB or #RRGGBBAA"),
					"tolerance": prop("number", "Euclidean RGB tolerance from the seed color (default: 32)"),
				},
				"required": []string{"color"},
			},
		},
	}
}
