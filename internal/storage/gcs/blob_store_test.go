package gcs

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Request:    r,
	}
}

func clientOptions(rt roundTripperFunc) []option.ClientOption {
	return []option.ClientOption{
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: rt}),
	}
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
	)
	client, err := storage.NewClient(context.Background(), clientOptions(func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/b/exports/o")
		data, readErr := io.ReadAll(r.Body)
		require.NoError(t, readErr)
		mu.Lock()
		body = string(data)
		mu.Unlock()
		return respond(r, http.StatusOK, `{"name":"listings/run.json","bucket":"exports"}`), nil
	})...)
	require.NoError(t, err)

	store, err := New(client, Config{Bucket: "exports"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "listings/run.json", "application/json", strings.NewReader(`{"run_id":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://exports/listings/run.json", uri)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, body, `{"run_id":"r"}`)
}

func TestPutObjectServerError(t *testing.T) {
	client, err := storage.NewClient(context.Background(), clientOptions(func(r *http.Request) (*http.Response, error) {
		return respond(r, http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`), nil
	})...)
	require.NoError(t, err)
	store, err := New(client, Config{Bucket: "exports"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "listings/run.json", "application/json", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	_, err = New(client, Config{})
	assert.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	assert.Error(t, err)
}

func TestOpenChecksBucket(t *testing.T) {
	store, err := Open(context.Background(), Config{Bucket: "exports"}, nil, clientOptions(func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/storage/v1/b/exports")
		return respond(r, http.StatusOK, `{"name":"exports"}`), nil
	})...)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(context.Background(), Config{Bucket: "missing"}, nil, clientOptions(func(r *http.Request) (*http.Response, error) {
		return respond(r, http.StatusNotFound, `{"error":{"code":404,"message":"not found"}}`), nil
	})...)
	assert.Error(t, err)
}
