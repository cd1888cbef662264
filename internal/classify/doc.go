// Package classify labels map-tile pixels as building body, building boundary
// or neither by comparing them against a small reference palette.
//
// Similarity is the Manhattan distance over the R, G and B channels (the sum
// of absolute channel differences). Alpha is ignored. A pixel matches a class
// when any palette sample of that class lies within the tolerance; building
// samples are checked before boundary samples.
//
// The flood fill package measures similarity with Euclidean RGB distance
// instead. The two metrics are intentionally separate.
package classify
