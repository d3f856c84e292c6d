// Package export writes finished run reports and zone results to the blob store and announces
// them on the publisher.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/pipeline"
	"github.com/JakeFAU/listing-extractor/internal/publisher"
	"github.com/JakeFAU/listing-extractor/internal/storage"
	"github.com/JakeFAU/listing-extractor/internal/zones"
)

// ContentType of every export object.
const ContentType = "application/json"

// Published event names.
const (
	EventRunCompleted   = "run.completed"
	EventZonesCompleted = "zones.completed"
)

// RunSummary is the notification payload for one scrape run.
type RunSummary struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Pages    int       `json:"pages"`
	Failed   []string  `json:"failed_pages,omitempty"`
	Located  int       `json:"located"`
	Stored   int       `json:"stored"`
	Skipped  int       `json:"skipped"`
	Export   string    `json:"export,omitempty"`
}

// Summarize condenses report; uri is where the full report was written.
func Summarize(report pipeline.Report, uri string) RunSummary {
	s := RunSummary{
		RunID:    report.RunID,
		Started:  report.Started,
		Finished: report.Finished,
		Pages:    len(report.Pages),
		Export:   uri,
	}
	for _, p := range report.Pages {
		if p.Error != "" {
			s.Failed = append(s.Failed, p.URL)
		}
		s.Located += p.Located
		s.Skipped += p.Skipped
		s.Stored += len(p.Stored)
	}
	return s
}

// Exporter writes exports under a path prefix.
type Exporter struct {
	blobs     storage.BlobStore
	publisher publisher.Publisher
	prefix    string
	logger    *zap.Logger
}

// New builds an Exporter. Nil blobs or pub disable that half.
func New(blobs storage.BlobStore, pub publisher.Publisher, prefix string, logger *zap.Logger) *Exporter {
	if blobs == nil {
		blobs = storage.NoOpBlobStore{}
	}
	if pub == nil {
		pub = publisher.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{blobs: blobs, publisher: pub, prefix: prefix, logger: logger}
}

// Run writes report as <prefix>/<run_id>.json and publishes its summary.
func (e *Exporter) Run(ctx context.Context, report pipeline.Report) (RunSummary, error) {
	uri, err := e.put(ctx, path.Join(e.prefix, report.RunID+".json"), report)
	if err != nil {
		return Summarize(report, ""), err
	}
	summary := Summarize(report, uri)
	if err := e.publish(ctx, EventRunCompleted, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// Zones writes result to objectPath, relative to the blob store root, and announces it.
func (e *Exporter) Zones(ctx context.Context, objectPath string, result zones.Result) (string, error) {
	uri, err := e.put(ctx, objectPath, result)
	if err != nil {
		return "", err
	}
	count := 0
	for _, z := range result {
		count += len(z)
	}
	payload := map[string]any{"export": uri, "sources": len(result), "zones": count}
	if err := e.publish(ctx, EventZonesCompleted, payload); err != nil {
		return uri, err
	}
	return uri, nil
}

func (e *Exporter) put(ctx context.Context, objectPath string, v any) (string, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", objectPath, err)
	}
	uri, err := e.blobs.PutObject(ctx, objectPath, ContentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", objectPath, err)
	}
	if uri != "" {
		e.logger.Info("Export written", zap.String("uri", uri), zap.Int("bytes", len(body)))
	}
	return uri, nil
}

func (e *Exporter) publish(ctx context.Context, event string, payload any) error {
	id, err := e.publisher.Publish(ctx, event, payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	if id != "" {
		e.logger.Info("Published event", zap.String("event", event), zap.String("message_id", id))
	}
	return nil
}
