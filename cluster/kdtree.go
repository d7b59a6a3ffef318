package cluster

import (
	"math"
	"sort"

	"web/powermap/site"
)

// kdPoint pairs a coordinate with the index of its site in the loaded
// slice. Points get reordered during the build; Idx keeps the link back.
type kdPoint struct {
	X, Y float64
	Idx  int32
}

// kdNode is one node of the tree. Interior nodes split on Axis at their own
// point; leaves cover the contiguous range Start..End of the points slice.
type kdNode struct {
	Point      int32
	Left       int32
	Right      int32
	Axis       uint8
	Leaf       bool
	Start, End int32
}

type kdTree struct {
	nodes    []kdNode
	points   []kdPoint
	nodeSize int
	bounds   Bounds
}

// newKDTree builds a median-split tree over the site coordinates. A nil or
// empty site list yields a tree that answers every query with nothing.
func newKDTree(sites []site.Feature, nodeSize int) *kdTree {
	t := &kdTree{
		nodes:    make([]kdNode, 0, 2*len(sites)+1),
		points:   make([]kdPoint, len(sites)),
		nodeSize: nodeSize,
		bounds: Bounds{
			MinX: math.Inf(1), MinY: math.Inf(1),
			MaxX: math.Inf(-1), MaxY: math.Inf(-1),
		},
	}

	for i, s := range sites {
		t.points[i] = kdPoint{X: s.Lon, Y: s.Lat, Idx: int32(i)}
		t.bounds.Extend(s.Lon, s.Lat)
	}

	if len(t.points) > 0 {
		t.build(0, len(t.points)-1, 0)
	}
	return t
}

func (t *kdTree) build(start, end, depth int) int32 {
	if start > end {
		return -1
	}

	nodeIdx := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{})

	if end-start < t.nodeSize {
		t.nodes[nodeIdx] = kdNode{
			Point: -1, Left: -1, Right: -1,
			Leaf:  true,
			Start: int32(start), End: int32(end),
		}
		return nodeIdx
	}

	axis := depth % 2
	sortRange(t.points[start:end+1], axis)
	median := (start + end) / 2

	// Children are built before the node is filled in: the recursive
	// appends may grow t.nodes, so no pointer into it is held across them.
	left := t.build(start, median-1, depth+1)
	right := t.build(median+1, end, depth+1)

	t.nodes[nodeIdx] = kdNode{
		Point: int32(median),
		Left:  left,
		Right: right,
		Axis:  uint8(axis),
	}
	return nodeIdx
}

func sortRange(points []kdPoint, axis int) {
	if axis == 0 {
		sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
	} else {
		sort.Slice(points, func(i, j int) bool { return points[i].Y < points[j].Y })
	}
}

// within returns the site indices inside b.
func (t *kdTree) within(b Bounds) []int32 {
	if len(t.points) == 0 {
		return nil
	}
	var out []int32
	t.search(0, b, &out)
	return out
}

func (t *kdTree) search(nodeIdx int32, b Bounds, out *[]int32) {
	if nodeIdx < 0 {
		return
	}
	n := t.nodes[nodeIdx]

	if n.Leaf {
		for i := n.Start; i <= n.End; i++ {
			p := t.points[i]
			if b.contains(p.X, p.Y) {
				*out = append(*out, p.Idx)
			}
		}
		return
	}

	p := t.points[n.Point]
	if b.contains(p.X, p.Y) {
		*out = append(*out, p.Idx)
	}

	// Left subtree holds coordinates <= split, right holds >=.
	var split, lo, hi float64
	if n.Axis == 0 {
		split, lo, hi = p.X, b.MinX, b.MaxX
	} else {
		split, lo, hi = p.Y, b.MinY, b.MaxY
	}
	if lo <= split {
		t.search(n.Left, b, out)
	}
	if hi >= split {
		t.search(n.Right, b, out)
	}
}
