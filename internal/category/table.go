// Package category loads the genre lookup table that maps tabelog genre names
// to palette icon keys and translated labels.
package category

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultIcon is the icon key used for genres missing from the table.
const DefaultIcon = "default"

// Description is the resolved view of a single genre.
type Description struct {
	Key   string
	Icon  string
	Label string
}

// Table is an immutable genre lookup built once per run.
type Table struct {
	entries map[string]Description
}

// NewTable builds a Table from in-memory descriptions. Later duplicates win.
func NewTable(descriptions ...Description) *Table {
	entries := make(map[string]Description, len(descriptions))
	for _, d := range descriptions {
		entries[d.Key] = d
	}
	return &Table{entries: entries}
}

// Load reads a three column CSV file (key, icon, label).
func Load(path string) (*Table, error) {
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open category table: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	table, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read category table %s: %w", path, err)
	}
	return table, nil
}

// Read parses the CSV form of the table. A leading UTF-8 BOM is ignored.
func Read(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	entries := make(map[string]Description)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse row: %w", err)
		}
		key := strings.TrimSpace(row[0])
		if key == "" {
			continue
		}
		entries[key] = Description{
			Key:   key,
			Icon:  strings.TrimSpace(row[1]),
			Label: strings.TrimSpace(row[2]),
		}
	}
	return &Table{entries: entries}, nil
}

// Lookup resolves a genre key. Unknown keys pass through with the default icon.
func (t *Table) Lookup(key string) Description {
	if t != nil {
		if d, ok := t.entries[key]; ok {
			return d
		}
	}
	return Description{Key: key, Icon: DefaultIcon, Label: key}
}

// Len reports the number of known genres.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
