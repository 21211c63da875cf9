package extract

import (
	"errors"
	"fmt"
)

// ErrStructure marks a page whose layout does not match the extractor.
var ErrStructure = errors.New("page layout mismatch")

// StructureError names the page and the element that could not be located.
type StructureError struct {
	URL     string
	Element string
}

func (e *StructureError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: missing %s", ErrStructure, e.Element)
	}
	return fmt.Sprintf("%s: %s: missing %s", ErrStructure, e.URL, e.Element)
}

// Is lets errors.Is(err, ErrStructure) match any StructureError.
func (e *StructureError) Is(target error) bool {
	return target == ErrStructure
}
