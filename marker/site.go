package marker

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"web/powermap/site"
)

// Icon sizing. The radius grows with the square root of the site's total so
// icon area scales roughly linearly with magnitude: small sites stay
// visible, large ones don't swallow the map. radiusGain was tuned against
// the expected generation range; Radius(0) is always the 8px base.
const (
	baseRadius  = 8.0
	radiusGain  = 0.022787
	scaleFactor = 2.5
)

// Radius maps a total generation value to the icon's disc radius.
func Radius(total float64) float64 {
	return baseRadius + math.Sqrt(total)*radiusGain
}

// Tooltip is the hover box attached to a marker.
type Tooltip struct {
	Content   string
	Offset    [2]float64
	Direction string
	Opacity   float64
}

// Marker is one rendered map marker: icon, tooltip and the coordinate it is
// bound to. The icon is anchored at its center so the disc sits exactly on
// the coordinate.
type Marker struct {
	Icon    Icon
	Tooltip Tooltip
	Lon     float64
	Lat     float64
}

// ForSite builds the marker for a single ungrouped site.
func ForSite(f site.Feature) Marker {
	total := f.Total()
	r := Radius(total)
	scale := r * scaleFactor

	icon := PieIcon(f.Values, f.Colors, scale, scale, r)
	icon.Anchor = [2]float64{scale / 2, scale / 2}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b><br>", html.EscapeString(f.Name))
	for i, v := range f.Values {
		writeTooltipLine(&b, f.Colors[i], f.Labels[i], strconv.FormatFloat(v, 'g', -1, 64))
	}

	return Marker{
		Icon:    icon,
		Tooltip: tooltipAbove(b.String(), scale),
		Lon:     f.Lon,
		Lat:     f.Lat,
	}
}

// writeTooltipLine appends one "bullet label: value" line, the bullet
// colored to match the slice.
func writeTooltipLine(b *strings.Builder, color, label, value string) {
	fmt.Fprintf(b, `<span style="color:%s">&#9679;</span> %s: %s<br>`,
		color, html.EscapeString(label), value)
}

// tooltipAbove anchors a tooltip above the icon, offset by half the icon
// scale so it clears the disc.
func tooltipAbove(content string, scale float64) Tooltip {
	return Tooltip{
		Content:   content,
		Offset:    [2]float64{0, -scale / 2},
		Direction: "top",
		Opacity:   0.9,
	}
}
