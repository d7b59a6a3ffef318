package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"web/powermap/site"
)

func testSite(id uint32, lon, lat float64) site.Feature {
	return site.Feature{
		ID:     id,
		Name:   fmt.Sprintf("Site %d", id),
		Lon:    lon,
		Lat:    lat,
		Values: []float64{float64(id) * 10},
		Colors: []string{"#e6c212"},
		Labels: []string{"Solar"},
	}
}

func TestIndexBounds(t *testing.T) {
	ix := NewIndex(Options{})
	ix.Load([]site.Feature{
		testSite(1, -10, 5),
		testSite(2, 10, -5),
		testSite(3, 0, 0),
	})

	b := ix.Bounds()
	if b.MinX != -10 || b.MaxX != 10 {
		t.Errorf("Expected X bounds [-10, 10], got [%f, %f]", b.MinX, b.MaxX)
	}
	if b.MinY != -5 || b.MaxY != 5 {
		t.Errorf("Expected Y bounds [-5, 5], got [%f, %f]", b.MinY, b.MaxY)
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	testCases := []struct {
		lon, lat float64
		zoom     int
	}{
		{0, 0, 0},
		{170, 85, 10},
		{-170, -85, 5},
		{45, 45, 8},
	}

	for _, tc := range testCases {
		x, y := project(tc.lon, tc.lat, tc.zoom, 512)
		lon, lat := unproject(x, y, tc.zoom, 512)

		const epsilon = 1e-6
		if math.Abs(tc.lon-lon) > epsilon || math.Abs(tc.lat-lat) > epsilon {
			t.Errorf("Projection round trip failed for (%f,%f) at zoom %d: got (%f,%f)",
				tc.lon, tc.lat, tc.zoom, lon, lat)
		}
	}
}

func TestKDTreeWithinMatchesLinearScan(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	sites := make([]site.Feature, 500)
	for i := range sites {
		sites[i] = testSite(uint32(i+1), -180+r.Float64()*360, -80+r.Float64()*160)
	}

	// Small node size forces real tree depth.
	tree := newKDTree(sites, 8)

	queries := []Bounds{
		{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90},
		{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10},
		{MinX: 0, MinY: 0, MaxX: 90, MaxY: 45},
		{MinX: 50, MinY: 50, MaxX: 51, MaxY: 51},
	}

	for _, q := range queries {
		var want []int32
		for i, s := range sites {
			if q.contains(s.Lon, s.Lat) {
				want = append(want, int32(i))
			}
		}

		got := tree.within(q)
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

		if len(got) != len(want) {
			t.Fatalf("within %+v returned %d sites, expected %d", q, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("within %+v index %d: got %d, expected %d", q, i, got[i], want[i])
			}
		}
	}
}

func TestClustersGroupsNearbySites(t *testing.T) {
	ix := NewIndex(Options{MaxZoom: 16, Radius: 100, Extent: 512, MinSites: 2})
	ix.Load([]site.Feature{
		testSite(1, 0, 0),
		testSite(2, 0.05, 0),
		testSite(3, 2, 0),
	})

	// At zoom 8 the projected radius is 50 world pixels: ~0.05 degrees of
	// longitude (18px) group, 2 degrees (728px) do not.
	nodes := ix.Clusters(Bounds{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, 8).Nodes

	if len(nodes) != 2 {
		t.Fatalf("Expected 2 nodes (one cluster, one single), got %d", len(nodes))
	}

	var clusterNode, single *Node
	for i := range nodes {
		if nodes[i].Count > 1 {
			clusterNode = &nodes[i]
		} else {
			single = &nodes[i]
		}
	}
	if clusterNode == nil || single == nil {
		t.Fatalf("Expected one cluster and one single node, got %+v", nodes)
	}

	if clusterNode.Count != 2 {
		t.Errorf("Expected cluster of 2 sites, got %d", clusterNode.Count)
	}
	if clusterNode.Site != nil {
		t.Error("Cluster node must not carry a single site feature")
	}
	if clusterNode.Lon <= 0 || clusterNode.Lon >= 0.05 {
		t.Errorf("Cluster centroid longitude %f outside member span", clusterNode.Lon)
	}

	if single.Site == nil || single.Site.ID != 3 {
		t.Errorf("Expected site 3 as the single node, got %+v", single)
	}
}

func TestClustersAtMaxZoomAreSingles(t *testing.T) {
	ix := NewIndex(Options{MaxZoom: 16, Radius: 100, Extent: 512, MinSites: 2})
	ix.Load([]site.Feature{
		testSite(1, 0, 0),
		testSite(2, 0.05, 0),
		testSite(3, 2, 0),
	})

	nodes := ix.Clusters(Bounds{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, 16).Nodes

	if len(nodes) != 3 {
		t.Fatalf("Expected 3 single nodes at max zoom, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.Count != 1 || n.Site == nil {
			t.Errorf("Expected single-site node, got %+v", n)
		}
	}
}

func TestGetLeavesOrderAndLimit(t *testing.T) {
	ix := NewIndex(Options{MaxZoom: 16, Radius: 100, Extent: 512, MinSites: 2})
	ix.Load([]site.Feature{
		testSite(1, 0, 0),
		testSite(2, 0.01, 0),
		testSite(3, 0.02, 0),
	})

	view := ix.Clusters(Bounds{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}, 4)
	if len(view.Nodes) != 1 || view.Nodes[0].Count != 3 {
		t.Fatalf("Expected a single cluster of 3, got %+v", view.Nodes)
	}

	leaves := view.GetLeaves(view.Nodes[0].ID, site.NoLimit)
	if len(leaves) != 3 {
		t.Fatalf("Expected 3 leaves, got %d", len(leaves))
	}
	// First-encounter order matches the loaded order here.
	for i, want := range []uint32{1, 2, 3} {
		if leaves[i].ID != want {
			t.Errorf("Leaf %d: expected site %d, got %d", i, want, leaves[i].ID)
		}
	}

	limited := view.GetLeaves(view.Nodes[0].ID, 2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 leaves with limit 2, got %d", len(limited))
	}

	if got := view.GetLeaves(999999, site.NoLimit); got != nil {
		t.Errorf("Expected nil leaves for unknown cluster ID, got %v", got)
	}
}

func TestViewsSurviveLaterQueries(t *testing.T) {
	ix := NewIndex(Options{MaxZoom: 16, Radius: 100, Extent: 512, MinSites: 2})
	ix.Load([]site.Feature{
		testSite(1, 0, 0),
		testSite(2, 0.01, 0),
		testSite(3, 100, 40),
		testSite(4, 100.01, 40),
	})

	first := ix.Clusters(Bounds{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}, 4)
	if len(first.Nodes) != 1 || first.Nodes[0].Count != 2 {
		t.Fatalf("Expected one cluster of 2 in the first viewport, got %+v", first.Nodes)
	}

	// A second query on a disjoint viewport must not invalidate the first
	// view's cluster IDs.
	second := ix.Clusters(Bounds{MinX: 99, MinY: 39, MaxX: 101, MaxY: 41}, 4)
	if len(second.Nodes) != 1 || second.Nodes[0].Count != 2 {
		t.Fatalf("Expected one cluster of 2 in the second viewport, got %+v", second.Nodes)
	}

	leaves := first.GetLeaves(first.Nodes[0].ID, site.NoLimit)
	if len(leaves) != 2 {
		t.Fatalf("First view lost its members after a later query: got %d leaves", len(leaves))
	}
	for i, want := range []uint32{1, 2} {
		if leaves[i].ID != want {
			t.Errorf("Leaf %d: expected site %d, got %d", i, want, leaves[i].ID)
		}
	}

	// Views are independent: the first view must not see the second's IDs.
	if got := first.GetLeaves(second.Nodes[0].ID, site.NoLimit); got != nil &&
		second.Nodes[0].ID != first.Nodes[0].ID {
		t.Errorf("First view answered for a foreign cluster ID: %v", got)
	}
}

func TestViewSummarize(t *testing.T) {
	ix := NewIndex(Options{MaxZoom: 16, Radius: 100, Extent: 512, MinSites: 2})
	ix.Load([]site.Feature{
		{ID: 1, Lon: 0, Lat: 0,
			Values: []float64{5}, Colors: []string{"red"}, Labels: []string{"Coal"}},
		{ID: 2, Lon: 0.01, Lat: 0,
			Values: []float64{3, 2}, Colors: []string{"red", "blue"}, Labels: []string{"Coal", "Hydro"}},
		{ID: 3, Lon: 2, Lat: 0,
			Values: []float64{7}, Colors: []string{"green"}, Labels: []string{"Wind"}},
	})

	summary := ix.Clusters(Bounds{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, 8).Summarize()

	if summary.TotalSites != 3 || summary.NumClusters != 1 || summary.NumSingles != 1 {
		t.Fatalf("Unexpected counts: %+v", summary)
	}
	if len(summary.Technologies) != 3 {
		t.Fatalf("Expected 3 technology rows, got %+v", summary.Technologies)
	}

	want := []TechnologyTotal{
		{Label: "Coal", Color: "red", Total: 8},
		{Label: "Hydro", Color: "blue", Total: 2},
		{Label: "Wind", Color: "green", Total: 7},
	}
	for i, w := range want {
		if summary.Technologies[i] != w {
			t.Errorf("Row %d: got %+v, expected %+v", i, summary.Technologies[i], w)
		}
	}
}

func TestClustersRespectsViewport(t *testing.T) {
	ix := NewIndex(Options{})
	ix.Load([]site.Feature{
		testSite(1, 0, 0),
		testSite(2, 100, 40),
	})

	nodes := ix.Clusters(Bounds{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}, 10).Nodes

	if len(nodes) != 1 {
		t.Fatalf("Expected only the in-view site, got %d nodes", len(nodes))
	}
	if nodes[0].Site == nil || nodes[0].Site.ID != 1 {
		t.Errorf("Expected site 1, got %+v", nodes[0])
	}
}
