// Package analytics labels stored listings by price density and ranks locations by average
// price per square meter.
package analytics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/metrics"
	"github.com/JakeFAU/listing-extractor/internal/storage"
)

// Category is the price-density tier written to a document's labels.
type Category string

// Price-density tiers.
const (
	Cheap     Category = "Cheap"
	Moderate  Category = "Moderate"
	Expensive Category = "Expensive"
)

// CategoryLabel is the label key Run writes.
const CategoryLabel = "category"

// DefaultTopN is the number of locations Run reports.
const DefaultTopN = 5

// Tertile cut points.
const (
	LowQuantile  = 0.33
	HighQuantile = 0.67
)

// ErrNoPrice is returned by CleanPrice when nothing numeric remains.
var ErrNoPrice = errors.New("price has no numeric value")

var leadingInt = regexp.MustCompile(`^(\d+)`)

// CleanPrice drops whitespace (including non-breaking and thin spaces) and dollar signs, then
// parses what remains.
func CleanPrice(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '$' {
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return 0, ErrNoPrice
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return v, nil
}

// TotalSize returns the leading integer of a size string such as "81 м²".
func TotalSize(raw string) (float64, bool) {
	m := leadingInt.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Quantile returns the q-th quantile of sorted using linear interpolation between the closest
// ranks. sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Thresholds are the upper bounds of the Cheap and Moderate tiers.
type Thresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Categorize places a price density into a tier. Bounds are inclusive.
func (t Thresholds) Categorize(pricePerSqm float64) Category {
	switch {
	case pricePerSqm <= t.Low:
		return Cheap
	case pricePerSqm <= t.High:
		return Moderate
	default:
		return Expensive
	}
}

// Item is one document that had both a price and a size.
type Item struct {
	ID          string   `json:"id"`
	Location    string   `json:"location"`
	PricePerSqm float64  `json:"price_per_sqm"`
	Category    Category `json:"category"`
}

// Classify computes price densities for docs and assigns tiers from the tertile thresholds of
// the set. Documents without a usable price or size are returned in skipped.
func Classify(docs []storage.Document) (items []Item, th Thresholds, skipped []string) {
	for _, d := range docs {
		price, err := CleanPrice(d.Record.Price)
		if err != nil {
			skipped = append(skipped, d.ID)
			continue
		}
		size, ok := TotalSize(d.Record.Size)
		if !ok || size == 0 {
			skipped = append(skipped, d.ID)
			continue
		}
		items = append(items, Item{ID: d.ID, Location: d.Record.Location, PricePerSqm: price / size})
	}
	if len(items) == 0 {
		return nil, Thresholds{}, skipped
	}

	densities := make([]float64, len(items))
	for i, it := range items {
		densities[i] = it.PricePerSqm
	}
	slices.Sort(densities)
	th = Thresholds{Low: Quantile(densities, LowQuantile), High: Quantile(densities, HighQuantile)}
	for i := range items {
		items[i].Category = th.Categorize(items[i].PricePerSqm)
	}
	return items, th, skipped
}

// LocationAverage is the mean price density of one location.
type LocationAverage struct {
	Location    string  `json:"location"`
	PricePerSqm float64 `json:"price_per_sqm"`
	Listings    int     `json:"listings"`
}

// TopLocations groups items by location and returns the n most expensive by mean price per
// square meter. Ties keep alphabetical order. n <= 0 returns every location.
func TopLocations(items []Item, n int) []LocationAverage {
	sums := make(map[string]*LocationAverage)
	for _, it := range items {
		agg, ok := sums[it.Location]
		if !ok {
			agg = &LocationAverage{Location: it.Location}
			sums[it.Location] = agg
		}
		agg.PricePerSqm += it.PricePerSqm
		agg.Listings++
	}
	out := make([]LocationAverage, 0, len(sums))
	for _, agg := range sums {
		agg.PricePerSqm /= float64(agg.Listings)
		out = append(out, *agg)
	}
	slices.SortFunc(out, func(a, b LocationAverage) int {
		if c := cmp.Compare(b.PricePerSqm, a.PricePerSqm); c != 0 {
			return c
		}
		return strings.Compare(a.Location, b.Location)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summary is the outcome of one analysis run.
type Summary struct {
	Categorized int               `json:"categorized"`
	Skipped     int               `json:"skipped"`
	Thresholds  Thresholds        `json:"thresholds"`
	Counts      map[Category]int  `json:"counts"`
	Top         []LocationAverage `json:"top"`
}

// Analyzer labels every stored document with its price-density tier.
type Analyzer struct {
	store  storage.DocumentStore
	topN   int
	logger *zap.Logger
}

// New builds an Analyzer. topN <= 0 uses DefaultTopN.
func New(store storage.DocumentStore, topN int, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	metrics.Init()
	return &Analyzer{store: store, topN: topN, logger: logger}
}

// Run reads every document, writes its category label and returns the location ranking.
// A failed label update stops the run; labels already written stay.
func (a *Analyzer) Run(ctx context.Context) (Summary, error) {
	docs, err := a.store.Find(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("find documents: %w", err)
	}
	items, th, skipped := Classify(docs)
	for _, id := range skipped {
		a.logger.Debug("Skipping document without price or size", zap.String("id", id))
	}

	summary := Summary{
		Skipped:    len(skipped),
		Thresholds: th,
		Counts:     make(map[Category]int, 3),
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("analysis canceled: %w", err)
		}
		if err := a.store.UpdateOne(ctx, it.ID, map[string]string{CategoryLabel: string(it.Category)}); err != nil {
			return summary, fmt.Errorf("label document %s: %w", it.ID, err)
		}
		metrics.ObserveCategory(string(it.Category))
		summary.Categorized++
		summary.Counts[it.Category]++
	}
	summary.Top = TopLocations(items, a.topN)

	a.logger.Info("Migration completed successfully.",
		zap.Int("categorized", summary.Categorized),
		zap.Int("skipped", summary.Skipped),
		zap.Float64("cheap_threshold", th.Low),
		zap.Float64("expensive_threshold", th.High),
	)
	for i, loc := range summary.Top {
		a.logger.Info("Top location",
			zap.Int("rank", i+1),
			zap.String("location", loc.Location),
			zap.Float64("price_per_sqm", loc.PricePerSqm),
			zap.Int("listings", loc.Listings),
		)
	}
	return summary, nil
}
