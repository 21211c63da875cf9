// Package markup exposes the small set of HTML queries the extractors need.
package markup

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node is a queryable view over a parsed HTML tree.
type Node interface {
	// Find returns the first descendant matching a CSS selector. The result
	// reports Exists() == false when nothing matched.
	Find(selector string) Node
	// FindAll returns every descendant matching a CSS selector in document order.
	FindAll(selector string) []Node
	// Attr reads an attribute of the node.
	Attr(name string) (string, bool)
	// Text joins every descendant text node after trimming, skipping blanks.
	Text() string
	// Exists reports whether the node matched anything.
	Exists() bool
}

// Parse reads an HTML document.
func Parse(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return selection{sel: doc.Selection}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (Node, error) {
	return Parse(strings.NewReader(s))
}

type selection struct {
	sel *goquery.Selection
}

func (s selection) Find(selector string) Node {
	return selection{sel: s.sel.Find(selector).First()}
}

func (s selection) FindAll(selector string) []Node {
	found := s.sel.Find(selector)
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, item *goquery.Selection) {
		out = append(out, selection{sel: item})
	})
	return out
}

func (s selection) Attr(name string) (string, bool) {
	return s.sel.Attr(name)
}

func (s selection) Text() string {
	var b strings.Builder
	for _, n := range s.sel.Nodes {
		joinText(&b, n)
	}
	return b.String()
}

func (s selection) Exists() bool {
	return s.sel.Length() > 0
}

func joinText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			b.WriteString(trimmed)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		joinText(b, c)
	}
}
