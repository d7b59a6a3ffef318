package marker

import (
	"fmt"
	"strings"

	"web/powermap/site"
)

// LeafSource exposes the member sites of an externally computed cluster.
// Implementations must return members in a stable first-encounter order and
// must not mutate their index while iterating; a negative limit
// (site.NoLimit) means the full member list.
type LeafSource interface {
	GetLeaves(clusterID uint32, limit int) []site.Feature
}

// bucket accumulates one technology during cluster aggregation. Buckets are
// keyed by rendered color: the palette is assumed to identify a technology
// uniquely, so two technologies sharing a color merge under the label seen
// first.
type bucket struct {
	color string
	label string
	total float64
}

// ForCluster builds the aggregate marker for a cluster. All leaves are
// pulled from src, their technology values merged by color into buckets
// ordered by first appearance, and the result rendered through the same pie
// icon path a single site uses.
func ForCluster(clusterID uint32, lon, lat float64, src LeafSource) Marker {
	leaves := src.GetLeaves(clusterID, site.NoLimit)

	// Ordered registry: the side slice records first-seen order, the map
	// gives O(1) updates. Go maps don't iterate in insertion order.
	order := make([]*bucket, 0, 8)
	byColor := make(map[string]*bucket, 8)

	for _, leaf := range leaves {
		for i, v := range leaf.Values {
			color := leaf.Colors[i]
			b, ok := byColor[color]
			if !ok {
				b = &bucket{color: color, label: leaf.Labels[i]}
				byColor[color] = b
				order = append(order, b)
			}
			b.total += v
		}
	}

	values := make([]float64, len(order))
	colors := make([]string, len(order))
	var total float64
	for i, b := range order {
		values[i] = b.total
		colors[i] = b.color
		total += b.total
	}
	if len(order) == 0 {
		// A cluster whose members all carry empty sequences still gets the
		// no-generation placeholder disc.
		values = []float64{0}
		colors = []string{site.NoGenerationColor}
	}

	r := Radius(total)
	scale := r * scaleFactor

	icon := PieIcon(values, colors, scale, scale, r)
	icon.Anchor = [2]float64{scale / 2, scale / 2}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Cluster of %d Sites</b><br>", len(leaves))
	for _, b := range order {
		writeTooltipLine(&sb, b.color, b.label, fmt.Sprintf("%.1f", b.total))
	}

	return Marker{
		Icon:    icon,
		Tooltip: tooltipAbove(sb.String(), scale),
		Lon:     lon,
		Lat:     lat,
	}
}
