// Package marker renders the proportional pie icons and tooltips shown on
// the network map, one per visible site and one per cluster of sites.
package marker

import (
	"fmt"
	"math"
	"strconv"
)

// angleEps is the tolerance used when deciding whether a computed span
// amounts to a full circle.
const angleEps = 1e-9

// polarPoint returns the point at angleDeg on the circle of radius r around
// (cx, cy). 0 degrees sits at 12 o'clock and angles grow clockwise, so the
// standard polar angle is rotated by -90 degrees.
func polarPoint(cx, cy, r, angleDeg float64) (float64, float64) {
	rad := (angleDeg - 90) * math.Pi / 180
	return cx + r*math.Cos(rad), cy + r*math.Sin(rad)
}

// coord formats a path coordinate. Four decimals keep the markup compact
// while staying well below a pixel of drift at icon scale.
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// describeSlice builds the SVG path for one wedge spanning startDeg..endDeg
// around (cx, cy). The normal case is center, line to the span start, arc to
// the span end, close. A 360 degree span collapses the arc command (its
// endpoints coincide), so fullCircle switches to two half-circle arcs that
// meet at startDeg+180 and form a closed disc.
func describeSlice(cx, cy, r, startDeg, endDeg float64, fullCircle bool) string {
	sx, sy := polarPoint(cx, cy, r, startDeg)
	ex, ey := polarPoint(cx, cy, r, endDeg)

	if fullCircle {
		mx, my := polarPoint(cx, cy, r, startDeg+180)
		return fmt.Sprintf("M %s %s A %s %s 0 1 1 %s %s A %s %s 0 1 1 %s %s Z",
			coord(sx), coord(sy),
			coord(r), coord(r), coord(mx), coord(my),
			coord(r), coord(r), coord(ex), coord(ey))
	}

	largeArc := 0
	if endDeg-startDeg > 180 {
		largeArc = 1
	}
	return fmt.Sprintf("M %s %s L %s %s A %s %s 0 %d 1 %s %s Z",
		coord(cx), coord(cy),
		coord(sx), coord(sy),
		coord(r), coord(r), largeArc, coord(ex), coord(ey))
}
