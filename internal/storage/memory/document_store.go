package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/storage"
)

// DocumentStore keeps listing documents in-memory for development and tests.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]storage.Document
	order []string
	now   func() time.Time
}

// NewDocumentStore constructs an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]storage.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// InsertOne stores rec under a new UUIDv7.
func (s *DocumentStore) InsertOne(_ context.Context, rec listing.Record) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate document id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id.String()] = storage.Document{ID: id.String(), Record: rec, CreatedAt: s.now()}
	s.order = append(s.order, id.String())
	return id.String(), nil
}

// UpdateOne merges labels into the document.
func (s *DocumentStore) UpdateOne(_ context.Context, id string, labels map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if doc.Labels == nil {
		doc.Labels = make(map[string]string, len(labels))
	}
	maps.Copy(doc.Labels, labels)
	s.docs[id] = doc
	return nil
}

// Find returns copies of all documents in insertion order.
func (s *DocumentStore) Find(_ context.Context) ([]storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Document, 0, len(s.order))
	for _, id := range s.order {
		doc := s.docs[id]
		doc.Labels = maps.Clone(doc.Labels)
		out = append(out, doc)
	}
	return out, nil
}
