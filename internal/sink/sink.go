// Package sink hands completed listing records to the document store.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/storage"
)

// Sink submits each record with exactly one InsertOne.
type Sink struct {
	store  storage.DocumentStore
	logger *zap.Logger
}

// New builds a Sink over store.
func New(store storage.DocumentStore, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, logger: logger}
}

// Store persists rec and returns its document ID. Empty records are skipped with a log line
// and stored=false. rec is passed by value so later changes by the caller cannot reach the
// stored copy.
func (s *Sink) Store(ctx context.Context, rec listing.Record) (id string, stored bool, err error) {
	if rec.Empty() {
		s.logger.Info("No data to store!")
		return "", false, nil
	}
	id, err = s.store.InsertOne(ctx, rec)
	if err != nil {
		return "", false, fmt.Errorf("insert record %q: %w", rec.URL, err)
	}
	s.logger.Debug("Stored listing", zap.String("id", id), zap.String("url", rec.URL))
	return id, true, nil
}
