// Package tile converts between geographic coordinates and slippy-map tile
// space (Web Mercator, EPSG:3857 tiling).
//
// A geographic point maps to exactly one tile and one pixel inside that tile
// at a given zoom level. The reverse mapping is lossy at pixel resolution:
// projecting a point to its pixel and back recovers the point to within the
// angular width of one pixel, not exactly.
//
// # Coordinate System
//
// Tiles are 256x256 pixels. Tile (0,0) is the north-west corner of the world;
// X grows eastward and Y grows southward, as in the image package. Pixel
// coordinates are 0-based offsets inside one tile image.
//
// # Out-of-range Input
//
// Latitudes beyond the Mercator limit (about ±85.0511°) are clamped to the
// limit and longitudes are clamped to [-180, 180]. The resulting tile index is
// always inside [0, 2^zoom). Use GeoPoint.Validate to reject NaN or
// out-of-range input before transforming user-supplied values.
package tile
