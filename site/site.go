// Package site holds the shared site feature type exchanged between the
// store, the clustering index and the marker renderer.
package site

// Palette fallbacks applied by the store when upstream data carries a
// technology the palette doesn't know, or a site with no generation at all.
const (
	UnknownColor      = "#808080"
	NoGenerationColor = "#000000"
	NoGenerationLabel = "No Generation"
)

// NoLimit is the "no limit" sentinel for LeafSource.GetLeaves implementations;
// any negative limit means the full member list.
const NoLimit = -1

// Technology is one palette entry mapping a generation technology to the
// color its pie slices are drawn with. Palette order is display order.
type Technology struct {
	Name  string `mapstructure:"name" json:"name"`
	Color string `mapstructure:"color" json:"color"`
}

// Feature is one geolocated generation site. Values, Colors and Labels are
// parallel sequences of the same length, one entry per technology with
// generation at this site. Callers own that invariant; it is not checked.
type Feature struct {
	ID     uint32    `json:"id"`
	Name   string    `json:"name"`
	Lon    float64   `json:"lon"`
	Lat    float64   `json:"lat"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
	Labels []string  `json:"labels"`
}

// Total returns the summed generation across all technologies.
func (f Feature) Total() float64 {
	var sum float64
	for _, v := range f.Values {
		sum += v
	}
	return sum
}
