package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"web/powermap/site"
)

// ViewSummary describes everything inside a clustered viewport: node counts
// plus the generation total per technology across all visible sites.
type ViewSummary struct {
	TotalSites   int               `json:"totalSites"`
	NumClusters  int               `json:"numClusters"`
	NumSingles   int               `json:"numSingles"`
	Technologies []TechnologyTotal `json:"technologies"`
}

// TechnologyTotal is one summary row. Rows come out in first-encounter
// order, keyed by color with the first-seen label retained, matching how the
// cluster markers aggregate.
type TechnologyTotal struct {
	Label string  `json:"label"`
	Color string  `json:"color"`
	Total float64 `json:"total"`
}

// Summarize folds every site in the view, clustered or single, into one
// per-technology breakdown.
func (v *View) Summarize() ViewSummary {
	summary := ViewSummary{Technologies: []TechnologyTotal{}}

	order := make([]string, 0, 8)
	totals := make(map[string]*TechnologyTotal, 8)
	addSite := func(f *site.Feature) {
		summary.TotalSites++
		for i, value := range f.Values {
			color := f.Colors[i]
			t, ok := totals[color]
			if !ok {
				t = &TechnologyTotal{Label: f.Labels[i], Color: color}
				totals[color] = t
				order = append(order, color)
			}
			t.Total += value
		}
	}

	for _, n := range v.Nodes {
		if n.Count > 1 {
			summary.NumClusters++
			for _, idx := range v.members[n.ID] {
				addSite(&v.ix.sites[idx])
			}
		} else {
			summary.NumSingles++
			addSite(n.Site)
		}
	}

	for _, color := range order {
		summary.Technologies = append(summary.Technologies, *totals[color])
	}
	return summary
}

// GenerateTestSites produces n random sites inside b using the given
// palette, for seeding and load testing. Each site gets a random subset of
// the technologies with one-decimal generation values; roughly one in ten
// carries no generation and gets the placeholder sequences.
func GenerateTestSites(n int, b Bounds, techs []site.Technology) []site.Feature {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	sites := make([]site.Feature, n)

	for i := 0; i < n; i++ {
		f := site.Feature{
			ID:   uint32(i + 1),
			Name: fmt.Sprintf("Site %04d", i+1),
			Lon:  b.MinX + r.Float64()*(b.MaxX-b.MinX),
			Lat:  b.MinY + r.Float64()*(b.MaxY-b.MinY),
		}

		if len(techs) > 0 && r.Intn(10) != 0 {
			for _, t := range techs {
				if r.Float64() < 0.6 {
					f.Values = append(f.Values, math.Round(r.Float64()*5000)/10)
					f.Colors = append(f.Colors, t.Color)
					f.Labels = append(f.Labels, t.Name)
				}
			}
		}
		if len(f.Values) == 0 {
			f.Values = []float64{0}
			f.Colors = []string{site.NoGenerationColor}
			f.Labels = []string{site.NoGenerationLabel}
		}

		sites[i] = f
	}
	return sites
}
