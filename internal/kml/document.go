// Package kml assembles restaurant records into a KML marker document.
package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/tabelog2kml/internal/restaurant"
)

// Namespace is the KML 2.2 namespace.
const Namespace = "http://www.opengis.net/kml/2.2"

// MediaLinksKey is the ExtendedData name My Maps reads photo URLs from.
const MediaLinksKey = "gx_media_links"

// MaxMediaLinks caps the photos attached to one placemark.
const MaxMediaLinks = 5

// Meta is the document level name and description.
type Meta struct {
	Name        string
	Description string
}

// KML is the document root.
type KML struct {
	XMLName  xml.Name `xml:"kml"`
	Xmlns    string   `xml:"xmlns,attr"`
	Document Document `xml:"Document"`
}

// Document holds metadata, style definitions and the placemark folder.
type Document struct {
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Styles      []StyleGroup `xml:"Style"`
	Folder      Folder       `xml:"Folder"`
}

// Folder groups the placemarks.
type Folder struct {
	Placemarks []Placemark `xml:"Placemark"`
}

// StyleGroup is a normal/highlight Style pair followed by their StyleMap.
type StyleGroup struct {
	Normal    Style
	Highlight Style
	Map       StyleMap
}

// MarshalXML writes the group as three sibling elements.
func (g StyleGroup) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	style := xml.StartElement{Name: xml.Name{Local: "Style"}}
	if err := e.EncodeElement(g.Normal, style); err != nil {
		return err
	}
	if err := e.EncodeElement(g.Highlight, style); err != nil {
		return err
	}
	return e.EncodeElement(g.Map, xml.StartElement{Name: xml.Name{Local: "StyleMap"}})
}

// Style is a single visual definition.
type Style struct {
	ID         string     `xml:"id,attr"`
	IconStyle  IconStyle  `xml:"IconStyle"`
	LabelStyle LabelStyle `xml:"LabelStyle"`
}

// IconStyle colors and scales the marker icon.
type IconStyle struct {
	Color string `xml:"color"`
	Scale string `xml:"scale"`
	Icon  Icon   `xml:"Icon"`
}

// Icon points at the marker image.
type Icon struct {
	Href string `xml:"href"`
}

// LabelStyle controls placemark label visibility.
type LabelStyle struct {
	Scale string `xml:"scale"`
}

// StyleMap switches between the normal and highlight styles.
type StyleMap struct {
	ID    string `xml:"id,attr"`
	Pairs []Pair `xml:"Pair"`
}

// Pair is one StyleMap entry.
type Pair struct {
	Key      string `xml:"key"`
	StyleURL string `xml:"styleUrl"`
}

// Placemark is one restaurant marker.
type Placemark struct {
	Name         string       `xml:"name"`
	Description  string       `xml:"description"`
	StyleURL     string       `xml:"styleUrl"`
	Point        Point        `xml:"Point"`
	ExtendedData ExtendedData `xml:"ExtendedData"`
}

// Point carries the lng,lat,alt triple.
type Point struct {
	Coordinates string `xml:"coordinates"`
}

// ExtendedData holds named values attached to a placemark.
type ExtendedData struct {
	Data []Data `xml:"Data"`
}

// Data is one named value.
type Data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// Build assembles the document. Placemarks keep the order of records and
// every referenced style is defined before the folder.
func Build(meta Meta, records []restaurant.Restaurant, styles *StyleRegistry) (*KML, error) {
	pairs := styles.StylesFor(records)
	groups := make([]StyleGroup, 0, len(pairs))
	for _, p := range pairs {
		g, err := Definition(p)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", p.ID(), err)
		}
		groups = append(groups, g)
	}

	placemarks := make([]Placemark, 0, len(records))
	for _, rec := range records {
		placemarks = append(placemarks, Placemark{
			Name:        PlacemarkName(rec),
			Description: PlacemarkDescription(rec),
			StyleURL:    styles.StyleURL(rec),
			Point:       Point{Coordinates: rec.Location.Coordinates()},
			ExtendedData: ExtendedData{Data: []Data{{
				Name:  MediaLinksKey,
				Value: MediaLinks(rec.Thumbnails),
			}}},
		})
	}

	return &KML{
		Xmlns: Namespace,
		Document: Document{
			Name:        meta.Name,
			Description: meta.Description,
			Styles:      groups,
			Folder:      Folder{Placemarks: placemarks},
		},
	}, nil
}

// PlacemarkName prefixes the restaurant name with its primary genre label.
func PlacemarkName(rec restaurant.Restaurant) string {
	if primary, ok := rec.PrimaryCategory(); ok {
		return primary.Label + " - " + rec.Name
	}
	return rec.Name
}

// PlacemarkDescription joins closing days, the page URL and the user comment.
func PlacemarkDescription(rec restaurant.Restaurant) string {
	s := rec.ClosedComment + "<br>" + rec.URL
	if rec.Comment != "" {
		s += "<br>" + rec.Comment
	}
	return s
}

// MediaLinks space-joins at most MaxMediaLinks photo URLs.
func MediaLinks(urls []string) string {
	if len(urls) > MaxMediaLinks {
		urls = urls[:MaxMediaLinks]
	}
	return strings.Join(urls, " ")
}

// Encode writes doc as tab indented UTF-8 XML with a declaration.
func Encode(w io.Writer, doc *KML) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush kml: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write trailing newline: %w", err)
	}
	return nil
}
