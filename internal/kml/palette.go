package kml

import (
	"fmt"
	"strings"
)

// DefaultKey names the fallback entry of both palettes.
const DefaultKey = "default"

// Entry maps a human key to a palette value.
type Entry struct {
	Key   string
	Value string
}

// Palette holds the icon ids and RGB colors a document may reference.
// Entry order is the order styles are emitted in.
type Palette struct {
	Icons  []Entry
	Colors []Entry
}

// DefaultPalette mirrors the Google My Maps stock icons and colors.
func DefaultPalette() Palette {
	return Palette{
		Icons: []Entry{
			{Key: "default", Value: "1577"},
			{Key: "fastfood", Value: "1567"},
			{Key: "noodle", Value: "1640"},
			{Key: "sushi", Value: "1835"},
			{Key: "beef", Value: "1553"},
			{Key: "chicken", Value: "1545"},
			{Key: "beer", Value: "1879"},
			{Key: "cafe", Value: "1534"},
			{Key: "dessert", Value: "1607"},
			{Key: "cocktail", Value: "1517"},
			{Key: "fish", Value: "1573"},
		},
		Colors: []Entry{
			{Key: "default", Value: "0288D1"},
			{Key: "red", Value: "A52714"},
			{Key: "orange", Value: "F9A825"},
			{Key: "yellow", Value: "FFD600"},
			{Key: "green", Value: "097138"},
			{Key: "blue", Value: "0288D1"},
			{Key: "purple", Value: "673AB7"},
			{Key: "black", Value: "000000"},
			{Key: "brown", Value: "4E342E"},
			{Key: "gray", Value: "757575"},
		},
	}
}

// ResolveIcon returns the icon id for key, or the default icon id.
func (p Palette) ResolveIcon(key string) string {
	return resolve(p.Icons, key)
}

// ResolveColor returns the RGB color for key, or the default color.
func (p Palette) ResolveColor(key string) string {
	return resolve(p.Colors, key)
}

func resolve(entries []Entry, key string) string {
	fallback := ""
	for _, e := range entries {
		if e.Key == key {
			return e.Value
		}
		if e.Key == DefaultKey {
			fallback = e.Value
		}
	}
	if fallback == "" && len(entries) > 0 {
		fallback = entries[0].Value
	}
	return fallback
}

// Validate reports malformed palettes.
func (p Palette) Validate() error {
	if len(p.Icons) == 0 {
		return fmt.Errorf("palette has no icons")
	}
	if len(p.Colors) == 0 {
		return fmt.Errorf("palette has no colors")
	}
	for _, c := range p.Colors {
		if _, err := KMLColor(c.Value); err != nil {
			return fmt.Errorf("color %q: %w", c.Key, err)
		}
	}
	return nil
}

// StyleMapID is the id shared by a StyleMap and, with suffixes, its two Styles.
func StyleMapID(icon, color string) string {
	return "icon-" + icon + "-" + color
}

// KMLColor converts RRGGBB into KML's opaque AABBGGRR form.
func KMLColor(rgb string) (string, error) {
	rgb = strings.TrimPrefix(rgb, "#")
	if len(rgb) != 6 {
		return "", fmt.Errorf("color %q must have 6 hex digits", rgb)
	}
	for _, r := range rgb {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return "", fmt.Errorf("color %q is not hexadecimal", rgb)
		}
	}
	return "ff" + rgb[4:6] + rgb[2:4] + rgb[0:2], nil
}
