package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/listing-extractor/internal/listing"
)

// MockDocumentStore is a testify mock of DocumentStore.
type MockDocumentStore struct {
	mock.Mock
}

// InsertOne is the mock implementation of the InsertOne method.
func (m *MockDocumentStore) InsertOne(ctx context.Context, rec listing.Record) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// UpdateOne is the mock implementation of the UpdateOne method.
func (m *MockDocumentStore) UpdateOne(ctx context.Context, id string, labels map[string]string) error {
	args := m.Called(ctx, id, labels)
	return args.Error(0) //nolint:wrapcheck
}

// Find is the mock implementation of the Find method.
func (m *MockDocumentStore) Find(ctx context.Context) ([]Document, error) {
	args := m.Called(ctx)
	docs, _ := args.Get(0).([]Document)
	return docs, args.Error(1) //nolint:wrapcheck
}

// MockBlobStore is a testify mock of BlobStore.
type MockBlobStore struct {
	mock.Mock
}

// PutObject is the mock implementation of the PutObject method. The reader is drained and
// passed to the expectation as a string.
func (m *MockBlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	args := m.Called(ctx, path, contentType, string(data))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
