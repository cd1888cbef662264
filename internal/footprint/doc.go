// Package footprint detects building outlines around a geographic point by
// scanning a raster map tile.
//
// # Pipeline
//
// A detection runs these steps once per call and keeps no state between
// calls:
//
//  1. Fetch the tile containing the point (Detector only; DetectImage takes
//     an already decoded tile).
//  2. Classify every pixel as building, boundary or neither.
//  3. Keep building pixels within SearchRadius of the query pixel.
//  4. Group them into clusters with cluster.Cluster.
//  5. Turn each cluster of at least MinClusterSize pixels into a closed
//     rectangular ring of geographic coordinates.
//
// The result carries the polygons and a Diagnostics record that is filled in
// once, after the pipeline finishes.
//
// # Errors
//
// Each way a detection can stop is a distinct sentinel so callers can pick a
// fallback per cause:
//
//   - ErrFetch: network failure or non-2xx response
//   - ErrDecode: tile bytes are not a readable image
//   - ErrOutOfBounds: the query pixel lies outside the tile image
//   - ErrNoCandidates: no building pixels near the query point
//   - ErrNoCluster: candidates exist but every cluster is too small
//
// ErrNoCandidates and ErrNoCluster come with a non-nil Result holding an
// empty polygon list and complete diagnostics.
//
// # Fallback
//
// Fallback chains an authoritative Source with a secondary one, usually a
// Detector, and only consults the secondary when the first has nothing.
package footprint
