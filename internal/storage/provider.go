// Package storage defines the persistence collaborators of the pipeline: a document store for
// listing records and a blob store for run exports. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/JakeFAU/listing-extractor/internal/listing"
)

// ErrNotFound is returned by UpdateOne for unknown document IDs.
var ErrNotFound = errors.New("document not found")

// Document is a stored listing record plus the labels attached after analysis.
type Document struct {
	ID        string            `json:"id"`
	Record    listing.Record    `json:"record"`
	Labels    map[string]string `json:"labels,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DocumentStore is the insert_one/update_one/find collaborator.
type DocumentStore interface {
	// InsertOne stores one record and returns its new ID.
	InsertOne(ctx context.Context, rec listing.Record) (string, error)
	// UpdateOne merges labels into the document's existing labels.
	UpdateOne(ctx context.Context, id string, labels map[string]string) error
	// Find returns every document in insertion order.
	Find(ctx context.Context) ([]Document, error)
}

// BlobStore uploads opaque objects and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// NoOpBlobStore discards uploads. It backs dry runs where exports are not wanted.
type NoOpBlobStore struct{}

// PutObject for NoOpBlobStore does nothing and returns an empty URI.
func (NoOpBlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", nil
}
