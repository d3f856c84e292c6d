package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/storage"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
	recordsTimeout     = 3 * time.Second
)

// RecordsHandler exposes read-only listing document endpoints.
type RecordsHandler struct {
	store   storage.DocumentStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewRecordsHandler wires the store and logger.
func NewRecordsHandler(store storage.DocumentStore, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsHandler{store: store, timeout: recordsTimeout, logger: logger}
}

// ListRecords handles GET /records?category=&limit=&offset=. It returns
// {"records": [...], "total": n} where total counts matches before paging, 400 for invalid
// query parameters, 503 when no store is wired, or 500 if the store fails.
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRecordLimit, maxRecordLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	docs, err := h.store.Find(ctx)
	if err != nil {
		h.logger.Error("find records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	matched := make([]storage.Document, 0, len(docs))
	for _, d := range docs {
		if category != "" && !strings.EqualFold(d.Labels["category"], category) {
			continue
		}
		matched = append(matched, d)
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	page := matched[offset:min(offset+limit, len(matched))]
	writeJSON(w, http.StatusOK, map[string]any{
		"records": page,
		"total":   total,
	})
}

// GetRecord handles GET /records/{record_id}. It returns {"record": {...}} or 404.
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	id := chi.URLParam(r, "record_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	docs, err := h.store.Find(ctx)
	if err != nil {
		h.logger.Error("find records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	for _, d := range docs {
		if d.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"record": d})
			return
		}
	}
	writeError(w, http.StatusNotFound, storage.ErrNotFound.Error())
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
