package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"web/powermap/site"
)

func TestRadius(t *testing.T) {
	assert.Equal(t, 8.0, Radius(0), "base radius with no data")

	// Non-decreasing in total.
	prev := Radius(0)
	for _, total := range []float64{0.5, 1, 10, 100, 1e4, 1e6, 1e8} {
		r := Radius(total)
		assert.GreaterOrEqual(t, r, prev, "total %v", total)
		prev = r
	}
}

func TestForSiteGeometry(t *testing.T) {
	f := site.Feature{
		Name:   "Midland",
		Lon:    11.5,
		Lat:    48.1,
		Values: []float64{400, 100},
		Colors: []string{"#e6c212", "#4287f5"},
		Labels: []string{"Solar", "Wind"},
	}

	m := ForSite(f)

	r := Radius(500)
	scale := r * scaleFactor
	assert.InDelta(t, scale, m.Icon.Width, 1e-9)
	assert.InDelta(t, scale, m.Icon.Height, 1e-9)
	assert.InDelta(t, scale/2, m.Icon.Anchor[0], 1e-9)
	assert.InDelta(t, scale/2, m.Icon.Anchor[1], 1e-9)

	assert.Equal(t, 11.5, m.Lon)
	assert.Equal(t, 48.1, m.Lat)
}

func TestForSiteTooltip(t *testing.T) {
	f := site.Feature{
		Name:   "Bay & Sound",
		Values: []float64{5, 3},
		Colors: []string{"#111111", "#222222"},
		Labels: []string{"Coal", "Gas"},
	}

	m := ForSite(f)

	assert.Contains(t, m.Tooltip.Content, "Bay &amp; Sound")
	assert.Contains(t, m.Tooltip.Content, `<span style="color:#111111">`)
	assert.Contains(t, m.Tooltip.Content, "Coal: 5")
	assert.Contains(t, m.Tooltip.Content, "Gas: 3")
	assert.Equal(t, "top", m.Tooltip.Direction)
	assert.Equal(t, 0.9, m.Tooltip.Opacity)

	scale := Radius(8) * scaleFactor
	assert.InDelta(t, -scale/2, m.Tooltip.Offset[1], 1e-9)
	assert.InDelta(t, 0, m.Tooltip.Offset[0], 1e-9)
}

func TestForSiteNoGeneration(t *testing.T) {
	f := site.Feature{
		Name:   "Idle",
		Values: []float64{0},
		Colors: []string{site.NoGenerationColor},
		Labels: []string{site.NoGenerationLabel},
	}

	m := ForSite(f)

	// Zero total keeps the base icon size and renders the placeholder disc.
	assert.InDelta(t, 8*scaleFactor, m.Icon.Width, 1e-9)
	assert.Contains(t, m.Icon.Markup, `fill="`+site.NoGenerationColor+`"`)
}
