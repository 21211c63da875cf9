package kml

import "github.com/JakeFAU/tabelog2kml/internal/restaurant"

const (
	markerHref   = "http://www.gstatic.com/mapspro/images/stock/503-wht-blank_maps.png"
	iconScale    = "1.0"
	labelScale   = "0.0"
	normalKey    = "normal"
	highlightKey = "highlight"
)

// StylePair identifies one style triple by resolved icon id and RGB color.
type StylePair struct {
	Icon  string
	Color string
}

// ID returns the StyleMap id of the pair.
func (p StylePair) ID() string {
	return StyleMapID(p.Icon, p.Color)
}

// StyleRegistry decides which styles a document carries and which style each
// placemark references.
type StyleRegistry struct {
	palette Palette
	seed    []StylePair
	fixed   *StylePair
}

// CartesianStyles pre-populates every icon × color pair of the palette.
func CartesianStyles(p Palette) *StyleRegistry {
	seen := make(map[StylePair]struct{})
	seed := make([]StylePair, 0, len(p.Icons)*len(p.Colors))
	for _, icon := range p.Icons {
		for _, color := range p.Colors {
			pair := StylePair{Icon: icon.Value, Color: color.Value}
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			seed = append(seed, pair)
		}
	}
	return &StyleRegistry{palette: p, seed: seed}
}

// SingleStyle emits one style that every placemark references. The keys are
// resolved through the palette.
func SingleStyle(p Palette, iconKey, colorKey string) *StyleRegistry {
	pair := StylePair{Icon: p.ResolveIcon(iconKey), Color: p.ResolveColor(colorKey)}
	return &StyleRegistry{palette: p, seed: []StylePair{pair}, fixed: &pair}
}

// PairFor resolves the style a record is drawn with.
func (r *StyleRegistry) PairFor(rec restaurant.Restaurant) StylePair {
	if r.fixed != nil {
		return *r.fixed
	}
	return StylePair{
		Icon:  r.palette.ResolveIcon(rec.Icon),
		Color: r.palette.ResolveColor(rec.Color),
	}
}

// StyleURL returns the styleUrl value for a record.
func (r *StyleRegistry) StyleURL(rec restaurant.Restaurant) string {
	return "#" + r.PairFor(rec).ID()
}

// StylesFor returns the deduplicated pairs a document over records needs: the
// pre-populated pairs first, then any pair a record references that was not
// pre-populated, in record order.
func (r *StyleRegistry) StylesFor(records []restaurant.Restaurant) []StylePair {
	seen := make(map[StylePair]struct{}, len(r.seed))
	out := make([]StylePair, 0, len(r.seed))
	add := func(p StylePair) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range r.seed {
		add(p)
	}
	for _, rec := range records {
		add(r.PairFor(rec))
	}
	return out
}

// Definition builds the normal Style, highlight Style and StyleMap of a pair.
func Definition(p StylePair) (StyleGroup, error) {
	color, err := KMLColor(p.Color)
	if err != nil {
		return StyleGroup{}, err
	}
	id := p.ID()
	style := func(suffix string) Style {
		return Style{
			ID: id + "-" + suffix,
			IconStyle: IconStyle{
				Color: color,
				Scale: iconScale,
				Icon:  Icon{Href: markerHref},
			},
			LabelStyle: LabelStyle{Scale: labelScale},
		}
	}
	return StyleGroup{
		Normal:    style(normalKey),
		Highlight: style(highlightKey),
		Map: StyleMap{
			ID: id,
			Pairs: []Pair{
				{Key: normalKey, StyleURL: "#" + id + "-" + normalKey},
				{Key: highlightKey, StyleURL: "#" + id + "-" + highlightKey},
			},
		},
	}, nil
}
