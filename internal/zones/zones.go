// Package zones scrapes zoning-code indexes: it follows every qualifying zone link into its own
// tab and collects the zone's description text.
package zones

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/metrics"
	"github.com/JakeFAU/listing-extractor/internal/navigator"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

// DescriptionNotFound is stored when no description element exists on a zone page.
const DescriptionNotFound = "Description not found"

// ErrMisaligned is returned when a source's link and name selectors match different counts.
var ErrMisaligned = errors.New("link and name selectors matched different element counts")

// Browser is the session surface the scraper drives.
type Browser interface {
	navigator.Windows
	Load(ctx context.Context, rawURL string) error
	Click(ctx context.Context, selector string) error
	OpenURL(ctx context.Context, rawURL string) error
	Texts(ctx context.Context, selector string) ([]string, error)
	Links(ctx context.Context, selector string) ([]string, error)
}

// Source describes one zoning-code site.
type Source struct {
	URL string `mapstructure:"url"`
	// Clicks are clicked in order after load. Each is best-effort.
	Clicks []string `mapstructure:"clicks"`
	// LinkSelector matches the zone anchors.
	LinkSelector string `mapstructure:"link_selector"`
	// NameSelector matches the element holding each zone name. It must match exactly one
	// element per anchor; empty uses the anchor text.
	NameSelector string `mapstructure:"name_selector"`
	// SkipWords drops leading words such as chapter numbers from the name.
	SkipWords int `mapstructure:"skip_words"`
	// CleanHyphen keeps only the part after the first hyphen.
	CleanHyphen bool `mapstructure:"clean_hyphen"`
	// Require is a substring every name must contain, ignoring case unless MatchCase is set.
	Require string `mapstructure:"require"`
	// MatchCase makes Require case-sensitive.
	MatchCase bool `mapstructure:"match_case"`
	// SkipPrefix drops links whose raw text starts with it, before SkipWords applies.
	SkipPrefix string `mapstructure:"skip_prefix"`
	// Exclude skips names containing any of these substrings.
	Exclude []string `mapstructure:"exclude"`
	// Strict rejects multi-sentence names and names starting with "district".
	Strict bool `mapstructure:"strict"`
	// DescriptionSelectors are read in order on the zone page and joined with spaces.
	DescriptionSelectors []string `mapstructure:"description_selectors"`
}

// Validate checks the fields every source needs.
func (s Source) Validate() error {
	if s.URL == "" {
		return errors.New("zone source url is required")
	}
	if s.LinkSelector == "" {
		return fmt.Errorf("zone source %s: link_selector is required", s.URL)
	}
	if len(s.DescriptionSelectors) == 0 {
		return fmt.Errorf("zone source %s: description_selectors is required", s.URL)
	}
	if s.SkipWords < 0 {
		return fmt.Errorf("zone source %s: skip_words must be >= 0", s.URL)
	}
	return nil
}

// Zone is one scraped zoning district.
type Zone struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Result maps each source URL to its zones.
type Result map[string][]Zone

// DropWords removes the first n space-separated words of text. It reports false when text has
// n words or fewer.
func DropWords(text string, n int) (string, bool) {
	text = strings.TrimSpace(text)
	if n == 0 {
		return text, true
	}
	parts := strings.SplitN(text, " ", n+1)
	if len(parts) <= n {
		return "", false
	}
	return parts[n], true
}

// CleanName keeps the text after the first hyphen and drops one more leading hyphen if present.
func CleanName(name string) string {
	if _, after, ok := strings.Cut(name, "-"); ok {
		name = after
	}
	name = strings.TrimSpace(name)
	if rest, ok := strings.CutPrefix(name, "-"); ok {
		name = strings.TrimSpace(rest)
	}
	return name
}

func (s Source) contains(name, sub string) bool {
	if s.MatchCase {
		return strings.Contains(name, sub)
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(sub))
}

// IsValidName rejects names with more than one sentence and names that start with "district".
func IsValidName(name string) bool {
	if strings.Contains(name, ".") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "district")
}

// ZoneName derives the zone name from raw link text, or reports false when the link does not
// name a zone.
func (s Source) ZoneName(raw string) (string, bool) {
	if s.SkipPrefix != "" && strings.HasPrefix(strings.TrimSpace(raw), s.SkipPrefix) {
		return "", false
	}
	name, ok := DropWords(raw, s.SkipWords)
	if !ok {
		return "", false
	}
	if s.CleanHyphen {
		name = CleanName(name)
	}
	if name == "" {
		return "", false
	}
	if s.Require != "" && !s.contains(name, s.Require) {
		return "", false
	}
	for _, ex := range s.Exclude {
		if strings.Contains(name, ex) {
			return "", false
		}
	}
	if s.Strict && !IsValidName(name) {
		return "", false
	}
	return name, true
}

// Scraper walks zone sources over one browser session.
type Scraper struct {
	nav    *navigator.Navigator
	settle pacing.Range
	pauser pacing.Pauser
	logger *zap.Logger
}

// New builds a Scraper. nav handles the per-zone tab lifecycle.
func New(nav *navigator.Navigator, settle pacing.Range, pauser pacing.Pauser, logger *zap.Logger) *Scraper {
	if pauser == nil {
		pauser = pacing.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Scraper{nav: nav, settle: settle, pauser: pauser, logger: logger}
}

// Scrape visits every source in order. A failing source is logged and left out of the result;
// only cancellation stops the walk.
func (s *Scraper) Scrape(ctx context.Context, b Browser, sources []Source) (Result, error) {
	out := make(Result, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("zones canceled: %w", err)
		}
		s.logger.Info("Scraping", zap.String("url", src.URL))
		zones, err := s.ScrapeSource(ctx, b, src)
		if err != nil {
			metrics.ObserveZoneSource("error")
			if ctx.Err() != nil {
				return out, err
			}
			s.logger.Error("Failed to scrape", zap.String("url", src.URL), zap.Error(err))
			continue
		}
		metrics.ObserveZoneSource("ok")
		out[src.URL] = zones
	}
	return out, nil
}

// ScrapeSource loads src, follows its zone links and returns the zones found. A zone whose
// page cannot be read is logged and skipped.
func (s *Scraper) ScrapeSource(ctx context.Context, b Browser, src Source) ([]Zone, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := b.Load(ctx, src.URL); err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	pacing.Wait(ctx, s.pauser, s.settle)
	for _, sel := range src.Clicks {
		if err := b.Click(ctx, sel); err != nil {
			s.logger.Warn("Element not found or clickable", zap.String("selector", sel), zap.Error(err))
			continue
		}
		pacing.Wait(ctx, s.pauser, s.settle)
	}

	hrefs, err := b.Links(ctx, src.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("collect zone links: %w", err)
	}
	nameSel := src.NameSelector
	if nameSel == "" {
		nameSel = src.LinkSelector
	}
	names, err := b.Texts(ctx, nameSel)
	if err != nil {
		return nil, fmt.Errorf("collect zone names: %w", err)
	}
	if len(names) != len(hrefs) {
		return nil, fmt.Errorf("%w: %d links, %d names", ErrMisaligned, len(hrefs), len(names))
	}

	zones := make([]Zone, 0, len(hrefs))
	for i, href := range hrefs {
		name, ok := src.ZoneName(names[i])
		if !ok || href == "" {
			continue
		}
		desc, err := navigator.Visit(ctx, s.nav, b,
			func(ctx context.Context) error { return b.OpenURL(ctx, href) },
			func(ctx context.Context) (string, error) { return s.describe(ctx, b, src.DescriptionSelectors), nil },
		)
		if err != nil {
			if ctx.Err() != nil {
				return zones, fmt.Errorf("zone %s: %w", href, err)
			}
			s.logger.Warn("Failed to scrape description", zap.String("url", href), zap.Error(err))
			continue
		}
		zones = append(zones, Zone{Name: name, Description: desc, Link: href})
	}
	s.logger.Info("Scraped zones", zap.String("url", src.URL), zap.Int("zones", len(zones)))
	return zones, nil
}

func (s *Scraper) describe(ctx context.Context, b Browser, selectors []string) string {
	var parts []string
	for _, sel := range selectors {
		texts, err := b.Texts(ctx, sel)
		if err != nil {
			s.logger.Debug("Description selector failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		for _, t := range texts {
			if t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) == 0 {
		return DescriptionNotFound
	}
	return strings.Join(parts, " ")
}
