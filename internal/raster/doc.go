// Package raster holds the image plumbing shared by the MCP tools: loading
// image files, sampling and parsing colors, encoding PNG output and
// rendering detection overlays.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner.
// Regions use an inclusive top-left and exclusive bottom-right, as
// image.Rectangle does. Functions that take an arbitrary image.Image
// address it in its own bounds; ToNRGBA and RenderOverlay return images
// whose bounds start at (0,0).
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless
// and never modify their input images.
//
// # Color Representation
//
// Sampled colors are reported as "#RRGGBB" hex (alpha excluded), 8-bit RGB
// and RGBA components, HSL and the building classifier's label for the
// pixel.
package raster
