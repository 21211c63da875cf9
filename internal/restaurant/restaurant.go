// Package restaurant defines the normalized record extracted from a review page.
package restaurant

import (
	"strings"

	"github.com/JakeFAU/tabelog2kml/internal/category"
)

// OtherCategory is the catch-all genre that never labels a placemark when a
// more specific genre is available.
const OtherCategory = "その他"

// DefaultColor is the color key used when no override is supplied.
const DefaultColor = "default"

// DefaultAltitude is appended to every coordinate triple.
const DefaultAltitude = "0.0"

// Location is a KML coordinate triple kept as the decimal strings found on the page.
type Location struct {
	Longitude string
	Latitude  string
	Altitude  string
}

// Coordinates renders the triple in KML order (lng,lat,alt).
func (l Location) Coordinates() string {
	alt := l.Altitude
	if alt == "" {
		alt = DefaultAltitude
	}
	return strings.Join([]string{l.Longitude, l.Latitude, alt}, ",")
}

// Restaurant is built once per fetched page and never mutated afterwards.
type Restaurant struct {
	URL           string
	Name          string
	Categories    []category.Description
	Location      Location
	ClosedComment string
	Thumbnails    []string
	Comment       string
	Icon          string
	Color         string
}

// PrimaryCategory returns the first genre that is not the catch-all. When every
// genre is the catch-all the first one is returned; ok is false for no genres.
func (r Restaurant) PrimaryCategory() (category.Description, bool) {
	if len(r.Categories) == 0 {
		return category.Description{}, false
	}
	for _, c := range r.Categories {
		if c.Key != OtherCategory {
			return c, true
		}
	}
	return r.Categories[0], true
}

// Overrides carries the optional per-restaurant values from the config file.
// A nil field means "not supplied".
type Overrides struct {
	Comment *string
	Icon    *string
	Color   *string
}

// Apply fills Comment, Icon and Color on r. Overrides win over values derived
// from the page, which win over the defaults.
func (o Overrides) Apply(r *Restaurant) {
	r.Comment = ""
	if o.Comment != nil {
		r.Comment = *o.Comment
	}

	r.Icon = category.DefaultIcon
	if primary, ok := r.PrimaryCategory(); ok && primary.Icon != "" {
		r.Icon = primary.Icon
	}
	if o.Icon != nil {
		r.Icon = *o.Icon
	}

	r.Color = DefaultColor
	if o.Color != nil {
		r.Color = *o.Color
	}
}
