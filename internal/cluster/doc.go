// Package cluster partitions candidate pixels into connected components.
//
// Two pixels are neighbours when their Euclidean distance is at most the
// clustering threshold. A cluster is the set of pixels reachable from each
// other through a chain of neighbours. Every input pixel ends up in exactly
// one cluster.
//
// # Determinism
//
// Output depends only on the input sequence and the threshold. Clusters are
// emitted in the order of their first pixel in the input; inside a cluster,
// pixels appear in breadth-first discovery order, with neighbours of the same
// pixel visited in input order. Neighbour lookups go through an R-tree, but
// the results are re-sorted by input position so the output is the same as a
// pairwise scan over all unvisited pixels.
package cluster
