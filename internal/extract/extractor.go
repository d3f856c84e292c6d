// Package extract reads the listing field schema out of a single located listing element.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/dates"
	"github.com/JakeFAU/listing-extractor/internal/listing"
)

// ErrMissingField marks a required element that could not be located.
var ErrMissingField = errors.New("required field not found")

// DateStrategy selects which rendered date value is the posting date.
type DateStrategy string

// Supported date strategies.
const (
	// DatePosition takes the value at Config.DateIndex. The page renders the "updated" date
	// first, so this depends on a fixed element order.
	DatePosition DateStrategy = "position"
	// DateMarker takes the first value containing the normalizer's prefix label.
	DateMarker DateStrategy = "marker"
)

// Config controls field extraction.
type Config struct {
	Selectors    listing.Selectors
	AreaMarker   string
	DateIndex    int
	DateStrategy DateStrategy
	Dates        dates.Normalizer
}

// DefaultDateIndex is the position of the posting date among the rendered date values.
const DefaultDateIndex = 1

// DefaultConfig returns the flatfy extraction settings.
func DefaultConfig() Config {
	return Config{
		Selectors:    listing.DefaultSelectors(),
		AreaMarker:   "м²",
		DateIndex:    DefaultDateIndex,
		DateStrategy: DatePosition,
		Dates:        dates.Ukrainian(),
	}
}

// Extractor turns a listing handle into a partial record (everything but URL).
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Extractor, filling unset selectors, marker, strategy and month table with the
// DefaultConfig values. DateIndex is only honored together with an explicit DateStrategy;
// without one, or when negative, it becomes DefaultDateIndex.
func New(cfg Config, logger *zap.Logger) *Extractor {
	cfg.Selectors = cfg.Selectors.WithDefaults()
	if cfg.AreaMarker == "" {
		cfg.AreaMarker = "м²"
	}
	if cfg.DateStrategy == "" {
		cfg.DateStrategy = DatePosition
		cfg.DateIndex = DefaultDateIndex
	}
	if cfg.DateIndex < 0 {
		cfg.DateIndex = DefaultDateIndex
	}
	if cfg.Dates.Months == nil {
		cfg.Dates = dates.Ukrainian()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract reads title, location, price, size, date and description from h. It never navigates.
func (e *Extractor) Extract(ctx context.Context, h listing.Handle) (listing.Record, error) {
	markup, err := h.Markup(ctx)
	if err != nil {
		return listing.Record{}, fmt.Errorf("read listing %d markup: %w", h.Index(), err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return listing.Record{}, fmt.Errorf("parse listing %d markup: %w", h.Index(), err)
	}
	sel := e.cfg.Selectors

	title, err := required(doc.Selection, sel.Title, "title")
	if err != nil {
		return listing.Record{}, err
	}
	price, err := required(doc.Selection, sel.Price, "price")
	if err != nil {
		return listing.Record{}, err
	}
	rawDate, err := e.rawDate(doc.Selection)
	if err != nil {
		return listing.Record{}, err
	}

	location := strings.Join(nonEmpty(texts(doc.Find(sel.LocationParts))), " ")
	if location == "" {
		return listing.Record{}, fmt.Errorf("%w: location (%s)", ErrMissingField, sel.LocationParts)
	}
	size := e.size(doc.Find(sel.SizeItems))
	if size == "" {
		return listing.Record{}, fmt.Errorf("%w: size containing %q (%s)", ErrMissingField, e.cfg.AreaMarker, sel.SizeItems)
	}

	rec := listing.Record{
		Title:    title,
		Location: location,
		Price:    price,
		Size:     size,
		Date:     e.cfg.Dates.Normalize(rawDate),
	}

	rec.Description = lookup(doc.Selection, sel.Description)
	if !rec.Description.IsFound() {
		e.logger.Info("Description not found", zap.Int("listing", h.Index()))
	}
	return rec, nil
}

func (e *Extractor) size(items *goquery.Selection) string {
	var parts []string
	for _, text := range texts(items) {
		if strings.Contains(text, e.cfg.AreaMarker) {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (e *Extractor) rawDate(root *goquery.Selection) (string, error) {
	values := texts(root.Find(e.cfg.Selectors.DateValues))
	if e.cfg.DateStrategy == DateMarker {
		marker := strings.TrimSpace(e.cfg.Dates.Prefix)
		for _, v := range values {
			if marker != "" && strings.Contains(v, marker) {
				return v, nil
			}
		}
		return "", fmt.Errorf("%w: date value containing %q", ErrMissingField, marker)
	}
	if e.cfg.DateIndex >= len(values) {
		return "", fmt.Errorf("%w: date value %d of %d", ErrMissingField, e.cfg.DateIndex, len(values))
	}
	return values[e.cfg.DateIndex], nil
}

func required(root *goquery.Selection, selector, name string) (string, error) {
	v, ok := lookup(root, selector).Get()
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ErrMissingField, name, selector)
	}
	return v, nil
}

func lookup(root *goquery.Selection, selector string) listing.Lookup[string] {
	found := root.Find(selector)
	if found.Length() == 0 {
		return listing.Absent[string]()
	}
	return listing.Found(strings.TrimSpace(found.First().Text()))
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		out = append(out, strings.TrimSpace(item.Text()))
	})
	return out
}
