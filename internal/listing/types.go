// Package listing defines the record and handle types shared by the extraction pipeline.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrIncomplete is returned by Record.Validate when a required field is empty.
var ErrIncomplete = errors.New("listing record incomplete")

// Lookup is the outcome of a best-effort element lookup: either a found value or absent.
type Lookup[T any] struct {
	value T
	found bool
}

// Found wraps a located value.
func Found[T any](v T) Lookup[T] {
	return Lookup[T]{value: v, found: true}
}

// Absent returns the empty outcome.
func Absent[T any]() Lookup[T] {
	return Lookup[T]{}
}

// Get returns the value and whether it was found.
func (l Lookup[T]) Get() (T, bool) {
	return l.value, l.found
}

// IsFound reports whether the lookup located a value.
func (l Lookup[T]) IsFound() bool {
	return l.found
}

// MarshalJSON encodes absent values as null.
func (l Lookup[T]) MarshalJSON() ([]byte, error) {
	if !l.found {
		return []byte("null"), nil
	}
	return json.Marshal(l.value)
}

// UnmarshalJSON decodes null as absent.
func (l *Lookup[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Lookup[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode lookup: %w", err)
	}
	*l = Found(v)
	return nil
}

// NoDescription is the sentinel stored when a listing has no description element.
var NoDescription = Absent[string]()

// Record is one extracted listing. Price and Size keep the page's raw text; Date is the
// canonical DD.MM form when the normalizer recognized it.
type Record struct {
	Title       string         `json:"title"`
	Location    string         `json:"location"`
	Price       string         `json:"price"`
	Size        string         `json:"size"`
	Date        string         `json:"date"`
	Description Lookup[string] `json:"description"`
	URL         string         `json:"url"`
}

// Validate reports ErrIncomplete unless every required field is populated.
// Description may legitimately be absent.
func (r Record) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"title", r.Title},
		{"location", r.Location},
		{"price", r.Price},
		{"size", r.Size},
		{"date", r.Date},
		{"url", r.URL},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// Empty reports whether nothing at all was extracted.
func (r Record) Empty() bool {
	return r.Title == "" && r.Location == "" && r.Price == "" && r.Size == "" &&
		r.Date == "" && r.URL == "" && !r.Description.IsFound()
}

// Handle references one listing element in the current index-page DOM. It is only valid until
// the page is reloaded or navigated away from.
type Handle interface {
	// Index is the listing's position on the index page.
	Index() int
	// Markup re-reads the element's outer HTML; it fails once the reference is stale.
	Markup(ctx context.Context) (string, error)
}
