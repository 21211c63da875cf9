// Package extract turns parsed tabelog review pages into restaurant records.
//
// Two page layouts are supported. The standard layout carries a canonical
// link element, a genre list and the photo strip; the compact layout exposes
// the canonical URL through the navigation bar, a single genre and a height
// filtered photo list.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/tabelog2kml/internal/category"
	"github.com/JakeFAU/tabelog2kml/internal/markup"
	"github.com/JakeFAU/tabelog2kml/internal/restaurant"
)

// Header labels of the information table.
const (
	FieldName        = "店名"
	FieldGenre       = "ジャンル"
	FieldClosingDays = "定休日"
)

// Variant names accepted by ForVariant.
const (
	VariantStandard = "standard"
	VariantCompact  = "compact"
)

// Extractor builds a restaurant record from one parsed page.
type Extractor interface {
	Extract(page markup.Node, overrides restaurant.Overrides) (restaurant.Restaurant, error)
}

// CategoryLookup resolves genre names.
type CategoryLookup interface {
	Lookup(key string) category.Description
}

// Layout lists the selectors that differ between page variants.
type Layout struct {
	// Canonical locates the element whose href is the page identifier.
	Canonical string
	// InfoTable locates the table of header/value rows.
	InfoTable string
	// MapImage locates the map preview image.
	MapImage string
	// MapInInfo restricts the map search to the information section.
	MapInInfo bool
	// Gallery locates the photo list; only its first match is read.
	Gallery string
	// Thumbnails selects the images inside Gallery in display order.
	Thumbnails string
	// SplitGenres enables splitting the genre field into several genres.
	SplitGenres bool
}

// StandardLayout matches current review pages.
var StandardLayout = Layout{
	Canonical:   `link[rel="canonical"]`,
	InfoTable:   "div.rstinfo-table table",
	MapImage:    "div.rstinfo-table__map img",
	MapInInfo:   true,
	Gallery:     "ul.rstdtl-top-postphoto__list",
	Thumbnails:  "img",
	SplitGenres: true,
}

// CompactLayout matches the older review page markup.
var CompactLayout = Layout{
	Canonical:  "#rdnavi-top a",
	InfoTable:  "#rst-data-head table",
	MapImage:   ".rst-map img",
	Gallery:    "#rst-photo ul",
	Thumbnails: `img[height="100"]`,
}

// TableExtractor implements Extractor for any Layout.
type TableExtractor struct {
	layout     Layout
	categories CategoryLookup
}

// New builds an extractor for the given layout.
func New(layout Layout, categories CategoryLookup) *TableExtractor {
	return &TableExtractor{layout: layout, categories: categories}
}

// NewStandard builds an extractor for the standard layout.
func NewStandard(categories CategoryLookup) *TableExtractor {
	return New(StandardLayout, categories)
}

// NewCompact builds an extractor for the compact layout.
func NewCompact(categories CategoryLookup) *TableExtractor {
	return New(CompactLayout, categories)
}

// ForVariant returns the extractor registered under name.
func ForVariant(name string, categories CategoryLookup) (*TableExtractor, error) {
	switch name {
	case VariantStandard:
		return NewStandard(categories), nil
	case VariantCompact:
		return NewCompact(categories), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", name)
	}
}

// Extract implements Extractor.
func (e *TableExtractor) Extract(page markup.Node, overrides restaurant.Overrides) (restaurant.Restaurant, error) {
	canonical, ok := page.Find(e.layout.Canonical).Attr("href")
	if !ok || strings.TrimSpace(canonical) == "" {
		return restaurant.Restaurant{}, &StructureError{Element: e.layout.Canonical}
	}
	canonical = strings.TrimSpace(canonical)
	fail := func(element string) (restaurant.Restaurant, error) {
		return restaurant.Restaurant{}, &StructureError{URL: canonical, Element: element}
	}

	info := page.Find(e.layout.InfoTable)
	if !info.Exists() {
		return fail(e.layout.InfoTable)
	}
	rows := readRows(info)

	name, ok := rows[FieldName]
	if !ok {
		return fail(FieldName)
	}
	genre, ok := rows[FieldGenre]
	if !ok {
		return fail(FieldGenre)
	}

	scope := page
	if e.layout.MapInInfo {
		scope = info
	}
	location, err := readLocation(scope.Find(e.layout.MapImage))
	if err != nil {
		return fail(fmt.Sprintf("%s (%v)", e.layout.MapImage, err))
	}

	r := restaurant.Restaurant{
		URL:           canonical,
		Name:          name,
		Categories:    e.resolveGenres(genre),
		Location:      location,
		ClosedComment: rows[FieldClosingDays],
		Thumbnails:    readThumbnails(page.Find(e.layout.Gallery), e.layout.Thumbnails),
	}
	overrides.Apply(&r)
	return r, nil
}

func (e *TableExtractor) resolveGenres(raw string) []category.Description {
	if !e.layout.SplitGenres {
		key := strings.TrimSpace(raw)
		if key == "" {
			return nil
		}
		return []category.Description{e.lookup(key)}
	}
	tokens := strings.Split(strings.ReplaceAll(raw, "、", ","), ",")
	out := make([]category.Description, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		out = append(out, e.lookup(token))
	}
	return out
}

func (e *TableExtractor) lookup(key string) category.Description {
	if e.categories == nil {
		return category.Description{Key: key, Icon: category.DefaultIcon, Label: key}
	}
	return e.categories.Lookup(key)
}

func readRows(table markup.Node) map[string]string {
	rows := make(map[string]string)
	for _, tr := range table.FindAll("tr") {
		th := tr.Find("th")
		td := tr.Find("td")
		if !th.Exists() || !td.Exists() {
			continue
		}
		rows[th.Text()] = td.Text()
	}
	return rows
}

// readLocation decodes the center=lat,lng query parameter of the map preview
// and swaps it into KML order.
func readLocation(img markup.Node) (restaurant.Location, error) {
	if !img.Exists() {
		return restaurant.Location{}, fmt.Errorf("element not found")
	}
	src, ok := img.Attr("data-original")
	if !ok {
		return restaurant.Location{}, fmt.Errorf("data-original not set")
	}
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return restaurant.Location{}, fmt.Errorf("parse map url: %w", err)
	}
	center := u.Query().Get("center")
	parts := strings.Split(center, ",")
	if len(parts) != 2 {
		return restaurant.Location{}, fmt.Errorf("center %q is not lat,lng", center)
	}
	lat, lng := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if lat == "" || lng == "" {
		return restaurant.Location{}, fmt.Errorf("center %q is not lat,lng", center)
	}
	return restaurant.Location{
		Longitude: lng,
		Latitude:  lat,
		Altitude:  restaurant.DefaultAltitude,
	}, nil
}

func readThumbnails(gallery markup.Node, selector string) []string {
	if !gallery.Exists() {
		return nil
	}
	imgs := gallery.FindAll(selector)
	out := make([]string, 0, len(imgs))
	for _, img := range imgs {
		if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, strings.TrimSpace(src))
		}
	}
	return out
}
