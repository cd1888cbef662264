package cluster

import (
	"image"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/ironsheep/footprint-mcp/internal/tile"
)

// DefaultMaxDistance is the neighbour threshold used by building detection.
const DefaultMaxDistance = 3.0

// PixelCluster is one connected component of candidate pixels. It is never
// empty.
type PixelCluster struct {
	Pixels []tile.PixelCoord `json:"pixels"`
}

// Len returns the number of member pixels.
func (c PixelCluster) Len() int {
	return len(c.Pixels)
}

// Bounds returns the axis-aligned bounding box of the members. Max is
// exclusive, as with image.Rectangle, so the last member pixel is at Max-1.
func (c PixelCluster) Bounds() image.Rectangle {
	if len(c.Pixels) == 0 {
		return image.Rectangle{}
	}
	minX, minY := c.Pixels[0].X, c.Pixels[0].Y
	maxX, maxY := minX, minY
	for _, p := range c.Pixels[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// indexedPixel is a pixel stored in the R-tree together with its position in
// the input sequence.
type indexedPixel struct {
	idx int
	pt  tile.PixelCoord
}

func (p *indexedPixel) Bounds() rtreego.Rect {
	return rtreego.Point{float64(p.pt.X), float64(p.pt.Y)}.ToRect(0.01)
}

// Cluster groups pixels into connected components under maxDistance.
//
// Parameters:
//   - pixels: candidate pixels in a stable order. Duplicates are kept as
//     separate members of the same cluster.
//   - maxDistance: neighbour threshold in pixels (inclusive). Negative values
//     are treated as 0, which only joins identical coordinates.
//
// Returns the clusters in order of their first member's input position.
func Cluster(pixels []tile.PixelCoord, maxDistance float64) []PixelCluster {
	if len(pixels) == 0 {
		return nil
	}
	if maxDistance < 0 || math.IsNaN(maxDistance) {
		maxDistance = 0
	}

	items := make([]*indexedPixel, len(pixels))
	spatials := make([]rtreego.Spatial, len(pixels))
	for i, p := range pixels {
		items[i] = &indexedPixel{idx: i, pt: p}
		spatials[i] = items[i]
	}
	tree := rtreego.NewTree(2, 25, 50, spatials...)

	visited := make([]bool, len(pixels))
	maxSq := maxDistance * maxDistance
	clusters := make([]PixelCluster, 0)

	for start := range pixels {
		if visited[start] {
			continue
		}
		visited[start] = true

		members := make([]tile.PixelCoord, 0, 1)
		queue := []int{start}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, pixels[cur])

			for _, n := range neighbours(tree, items[cur], maxDistance, maxSq, visited) {
				visited[n] = true
				queue = append(queue, n)
			}
		}

		clusters = append(clusters, PixelCluster{Pixels: members})
	}

	return clusters
}

// neighbours returns the input positions of unvisited pixels within maxDistance
// of p, sorted ascending.
func neighbours(tree *rtreego.Rtree, p *indexedPixel, maxDistance, maxSq float64, visited []bool) []int {
	lo := rtreego.Point{float64(p.pt.X) - maxDistance - 0.5, float64(p.pt.Y) - maxDistance - 0.5}
	hi := rtreego.Point{float64(p.pt.X) + maxDistance + 0.5, float64(p.pt.Y) + maxDistance + 0.5}
	box, err := rtreego.NewRectFromPoints(lo, hi)
	if err != nil {
		return nil
	}

	var out []int
	for _, s := range tree.SearchIntersect(box) {
		q := s.(*indexedPixel)
		if visited[q.idx] {
			continue
		}
		dx := float64(q.pt.X - p.pt.X)
		dy := float64(q.pt.Y - p.pt.Y)
		if dx*dx+dy*dy <= maxSq {
			out = append(out, q.idx)
		}
	}
	sort.Ints(out)
	return out
}
