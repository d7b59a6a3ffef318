// Package cluster implements the spatial index that groups nearby
// generation sites into zoom-dependent clusters and hands their member
// lists to the marker renderer.
package cluster

import (
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"web/powermap/site"
)

// Options configures an Index. Zero fields take the defaults applied by
// NewIndex.
type Options struct {
	MinZoom  int
	MaxZoom  int
	MinSites int     // minimum group size before a cluster forms
	Radius   float64 // clustering radius in extent pixels at MaxZoom
	Extent   int     // tile extent used by the projection
	NodeSize int     // KD-tree leaf bucket size
	Logger   *zap.Logger
}

// Bounds is an axis-aligned lon/lat box.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Extend expands the bounds to include (x, y).
func (b *Bounds) Extend(x, y float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
}

func (b Bounds) contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Node is one entry of a clustered view: either a single site (Count == 1,
// Site set) or an aggregate whose members are retrievable via GetLeaves.
type Node struct {
	ID    uint32
	Lon   float64
	Lat   float64
	Count int
	Site  *site.Feature
}

// Index holds the loaded sites and answers viewport clustering queries.
// Loading happens once; after that the index is read-only and Clusters is
// safe for concurrent use.
type Index struct {
	opts  Options
	log   *zap.Logger
	sites []site.Feature
	tree  *kdTree
}

// View is the result of one Clusters call: the clustered nodes plus the
// membership needed to replay each cluster's leaves. Every call gets its own
// view, so overlapping viewport queries cannot disturb each other's cluster
// IDs. A view stays valid until dropped; it reads the index but never
// mutates it.
type View struct {
	Nodes []Node

	ix      *Index
	members map[uint32][]int32
}

// NewIndex creates an empty index, filling in defaults for unset options.
func NewIndex(opts Options) *Index {
	if opts.MinZoom < 0 {
		opts.MinZoom = 0
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 16
	}
	if opts.NodeSize <= 0 {
		opts.NodeSize = 64
	}
	if opts.Extent <= 0 {
		opts.Extent = 512
	}
	if opts.Radius <= 0 {
		opts.Radius = 40
	}
	if opts.MinSites <= 0 {
		opts.MinSites = 2
	}
	if opts.MinZoom > opts.MaxZoom {
		opts.MinZoom = opts.MaxZoom
	}
	if opts.MaxZoom > 16 {
		opts.MaxZoom = 16
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Index{
		opts: opts,
		log:  log,
	}
}

// Load (re)builds the index over the given sites. The slice is retained;
// callers must not mutate it afterwards.
func (ix *Index) Load(sites []site.Feature) {
	ix.sites = sites
	ix.tree = newKDTree(sites, ix.opts.NodeSize)

	ix.log.Info("site index loaded",
		zap.Int("sites", len(sites)),
		zap.Int("node_size", ix.opts.NodeSize))
}

// Len returns the number of loaded sites.
func (ix *Index) Len() int { return len(ix.sites) }

// Sites returns the loaded site slice (read-only by convention).
func (ix *Index) Sites() []site.Feature { return ix.sites }

// Bounds returns the bounding box of all loaded sites.
func (ix *Index) Bounds() Bounds {
	if ix.tree == nil {
		return Bounds{}
	}
	return ix.tree.bounds
}

// Options returns the effective options after defaulting.
func (ix *Index) Options() Options { return ix.opts }

// Clusters groups the sites inside b at the given zoom level. Sites whose
// projected distance falls within the zoom-scaled radius and that reach
// MinSites together form one cluster node; everything else comes back as an
// individual site node. Cluster IDs are transient, scoped to the returned
// view, and re-derived on every call.
func (ix *Index) Clusters(b Bounds, zoom int) *View {
	view := &View{ix: ix, members: make(map[uint32][]int32)}
	if ix.tree == nil {
		return view
	}
	if zoom < ix.opts.MinZoom {
		zoom = ix.opts.MinZoom
	}
	if zoom > ix.opts.MaxZoom {
		zoom = ix.opts.MaxZoom
	}

	visible := ix.tree.within(b)

	// Radius in projected units shrinks as the zoom grows.
	zoomFactor := math.Pow(2, float64(ix.opts.MaxZoom-zoom))
	radius := ix.opts.Radius * zoomFactor / float64(ix.opts.Extent)

	type projected struct {
		x, y float64
		idx  int32
	}
	pts := make([]projected, len(visible))
	for i, idx := range visible {
		s := &ix.sites[idx]
		x, y := project(s.Lon, s.Lat, zoom, ix.opts.Extent)
		pts[i] = projected{x: x, y: y, idx: idx}
	}

	nodes := make([]Node, 0, len(pts))
	processed := make([]bool, len(pts))

	for i := range pts {
		if processed[i] {
			continue
		}

		var nearby []int
		for j := i + 1; j < len(pts); j++ {
			if processed[j] {
				continue
			}
			dx := pts[j].x - pts[i].x
			dy := pts[j].y - pts[i].y
			if dx*dx+dy*dy <= radius*radius {
				nearby = append(nearby, j)
			}
		}

		if len(nearby)+1 >= ix.opts.MinSites && len(nearby) > 0 {
			group := make([]int32, 0, len(nearby)+1)
			group = append(group, pts[i].idx)
			processed[i] = true

			sumX, sumY := pts[i].x, pts[i].y
			for _, j := range nearby {
				group = append(group, pts[j].idx)
				processed[j] = true
				sumX += pts[j].x
				sumY += pts[j].y
			}

			lon, lat := unproject(sumX/float64(len(group)), sumY/float64(len(group)), zoom, ix.opts.Extent)
			id := uuid.New().ID()
			view.members[id] = group
			nodes = append(nodes, Node{
				ID:    id,
				Lon:   lon,
				Lat:   lat,
				Count: len(group),
			})
		} else {
			processed[i] = true
			s := &ix.sites[pts[i].idx]
			nodes = append(nodes, Node{
				ID:    s.ID,
				Lon:   s.Lon,
				Lat:   s.Lat,
				Count: 1,
				Site:  s,
			})
		}
	}

	ix.log.Debug("clustered viewport",
		zap.Int("zoom", zoom),
		zap.Int("visible", len(visible)),
		zap.Int("nodes", len(nodes)))

	view.Nodes = nodes
	return view
}

// GetLeaves returns the member sites of a cluster in this view, in
// first-encounter order. A negative limit (site.NoLimit) returns all
// members; an unknown ID returns nil. The index is never mutated.
func (v *View) GetLeaves(clusterID uint32, limit int) []site.Feature {
	idxs := v.members[clusterID]
	if idxs == nil {
		return nil
	}
	if limit >= 0 && len(idxs) > limit {
		idxs = idxs[:limit]
	}

	leaves := make([]site.Feature, len(idxs))
	for i, idx := range idxs {
		leaves[i] = v.ix.sites[idx]
	}
	return leaves
}

// project converts lon/lat to pixel coordinates in the Web-Mercator tile
// space of the given zoom level.
func project(lon, lat float64, zoom, extent int) (float64, float64) {
	sin := math.Sin(lat * math.Pi / 180)
	x := (lon + 180) / 360
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi

	scale := math.Pow(2, float64(zoom)) * float64(extent)
	return x * scale, y * scale
}

// unproject converts tile-space pixel coordinates back to lon/lat.
func unproject(x, y float64, zoom, extent int) (float64, float64) {
	scale := math.Pow(2, float64(zoom)) * float64(extent)
	x /= scale
	y /= scale

	lon := x*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*y))) * 180 / math.Pi
	return lon, lat
}
