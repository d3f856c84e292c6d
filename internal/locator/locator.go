// Package locator enumerates the listing elements of a loaded index page.
package locator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

// Page is the part of a browser session the locator drives.
type Page interface {
	Load(ctx context.Context, rawURL string) error
	Listings(ctx context.Context, selector string) ([]listing.Handle, error)
}

// Locator loads index pages and snapshots their listings.
type Locator struct {
	selector string
	settle   pacing.Range
	pauser   pacing.Pauser
	logger   *zap.Logger
}

// New builds a Locator. An empty selector uses the default listing selector.
func New(selector string, settle pacing.Range, pauser pacing.Pauser, logger *zap.Logger) *Locator {
	if selector == "" {
		selector = listing.DefaultSelectors().Listing
	}
	if pauser == nil {
		pauser = pacing.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{selector: selector, settle: settle, pauser: pauser, logger: logger}
}

// Locate loads pageURL, waits for dynamic rendering to settle and returns at most limit
// listings present at that instant. limit <= 0 means no cap. Zero listings is a valid result.
func (l *Locator) Locate(ctx context.Context, page Page, pageURL string, limit int) ([]listing.Handle, error) {
	if err := page.Load(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("load index page: %w", err)
	}
	waited := pacing.Wait(ctx, l.pauser, l.settle)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("settle index page: %w", err)
	}

	handles, err := page.Listings(ctx, l.selector)
	if err != nil {
		return nil, fmt.Errorf("enumerate listings: %w", err)
	}
	if limit > 0 && len(handles) > limit {
		handles = handles[:limit]
	}
	l.logger.Info("Located listings",
		zap.String("url", pageURL),
		zap.Int("count", len(handles)),
		zap.Int("limit", limit),
		zap.Duration("settle", waited),
	)
	if handles == nil {
		handles = []listing.Handle{}
	}
	return handles, nil
}
