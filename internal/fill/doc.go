// Package fill implements interactive flood fill on an RGBA raster.
//
// Fill grows a 4-connected region from a seed pixel and repaints it in place.
// A pixel joins the region when its Euclidean RGB distance to the seed's
// ORIGINAL color is within tolerance; the comparison never chains through
// previously visited pixels, so the tolerance bounds the whole region.
//
// The buffer is owned by the caller and must not be modified concurrently
// with a running fill.
package fill
