package marker

import (
	"fmt"
	"strings"
)

// Default icon geometry when the caller passes zero values.
const (
	DefaultWidth  = 60.0
	DefaultHeight = 60.0
	DefaultRadius = 20.0
)

// Slice is one angular wedge of a pie icon. Start and End are degrees from
// 12 o'clock, clockwise. Full marks the 360 degree degenerate case.
type Slice struct {
	Color string
	Start float64
	End   float64
	Full  bool
}

// Icon is a rendered pie icon: the SVG markup, its bounding box, and the
// pixel anchor the hosting map widget should pin to the coordinate.
type Icon struct {
	Markup string
	Width  float64
	Height float64
	Anchor [2]float64
}

// Slices converts ordered values into angular spans. Each slice covers
// value/sum of the circle and takes colors[i mod len(colors)], so a short
// palette wraps around instead of failing. A zero sum yields a single full
// disc in the first configured color, the "no data" placeholder, without
// attempting any subdivision. colors must be non-empty.
func Slices(values []float64, colors []string) []Slice {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return []Slice{{Color: colors[0], Start: 0, End: 360, Full: true}}
	}

	out := make([]Slice, 0, len(values))
	start := 0.0
	for i, v := range values {
		span := v / sum * 360
		s := Slice{
			Color: colors[i%len(colors)],
			Start: start,
			End:   start + span,
		}
		if span >= 360-angleEps {
			s.Full = true
		}
		out = append(out, s)
		start += span
	}
	return out
}

// PieIcon assembles the icon markup for the given values and colors. Zero
// width, height or radius fall back to the 60x60/20 defaults. The disc is
// centered in the bounding box; the anchor is left for the marker factories
// to fill in.
func PieIcon(values []float64, colors []string, width, height, radius float64) Icon {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if radius <= 0 {
		radius = DefaultRadius
	}

	cx, cy := width/2, height/2

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		coord(width), coord(height), coord(width), coord(height))
	for _, s := range Slices(values, colors) {
		fmt.Fprintf(&b, `<path d="%s" fill="%s"/>`,
			describeSlice(cx, cy, radius, s.Start, s.End, s.Full), s.Color)
	}
	b.WriteString(`</svg>`)

	return Icon{Markup: b.String(), Width: width, Height: height}
}
