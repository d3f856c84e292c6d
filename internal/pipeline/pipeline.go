// Package pipeline drives one browser session through index pages, extracting each listing
// under a bounded retry and handing completed records to the sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/extract"
	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/locator"
	"github.com/JakeFAU/listing-extractor/internal/logging"
	"github.com/JakeFAU/listing-extractor/internal/metrics"
	"github.com/JakeFAU/listing-extractor/internal/navigator"
	"github.com/JakeFAU/listing-extractor/internal/progress"
	"github.com/JakeFAU/listing-extractor/internal/retry"
)

// Session is the browser surface a run needs.
type Session interface {
	locator.Page
	navigator.DetailOpener
	Teardown() error
}

// StartFunc opens a session. Errors are fatal for the run.
type StartFunc func(ctx context.Context) (Session, error)

// SessionsFrom adapts a browser.Manager.
func SessionsFrom(m *browser.Manager) StartFunc {
	return func(ctx context.Context) (Session, error) {
		s, err := m.Start(ctx)
		if err != nil {
			// Return a nil interface, not a typed nil pointer.
			return nil, err
		}
		return s, nil
	}
}

// Extractor reads a partial record from a listing handle.
type Extractor interface {
	Extract(ctx context.Context, h listing.Handle) (listing.Record, error)
}

// Navigator captures a listing's detail URL.
type Navigator interface {
	NavigateAndCapture(ctx context.Context, w navigator.DetailOpener, h listing.Handle) (string, error)
}

// RecordSink persists one record.
type RecordSink interface {
	Store(ctx context.Context, rec listing.Record) (string, bool, error)
}

// Stored is a record accepted by the sink.
type Stored struct {
	ID     string         `json:"id"`
	Record listing.Record `json:"record"`
}

// PageReport summarizes one index page.
type PageReport struct {
	URL       string   `json:"url"`
	Located   int      `json:"located"`
	Extracted int      `json:"extracted"`
	Skipped   int      `json:"skipped"`
	Stored    []Stored `json:"stored"`
	Error     string   `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID    string       `json:"run_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Pages    []PageReport `json:"pages"`
}

// Records returns every stored record across pages.
func (r Report) Records() []Stored {
	var out []Stored
	for _, p := range r.Pages {
		out = append(out, p.Stored...)
	}
	return out
}

// Config bounds a run.
type Config struct {
	// Limit caps listings per page; <= 0 means no cap.
	Limit int
	Retry retry.Controller
	// Progress receives run and page milestones; nil discards them.
	Progress progress.Emitter
}

// Runner wires the pipeline components.
type Runner struct {
	cfg       Config
	start     StartFunc
	locator   *locator.Locator
	extractor Extractor
	navigator Navigator
	sink      RecordSink
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a Runner.
func New(
	cfg Config,
	start StartFunc,
	loc *locator.Locator,
	ext Extractor,
	nav Navigator,
	sink RecordSink,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}
	if cfg.Progress == nil {
		cfg.Progress = progress.Nop{}
	}
	metrics.Init()
	return &Runner{
		cfg:       cfg,
		start:     start,
		locator:   loc,
		extractor: ext,
		navigator: nav,
		sink:      sink,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run processes pages sequentially. A page that fails to load is reported and the next page
// continues; a session that cannot start ends the run with an error wrapping
// browser.ErrSessionStart. The report always carries what was stored before any failure.
func (r *Runner) Run(ctx context.Context, pages []string) (report Report, err error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	report = Report{RunID: id.String(), Started: r.now()}
	logger := logging.ForRun(r.logger, "scrape", report.RunID)
	r.emit(progress.Event{RunID: report.RunID, Stage: progress.StageRunStart, Command: "scrape"})
	defer func() {
		report.Finished = r.now()
		if err != nil {
			r.emit(progress.Event{RunID: report.RunID, Stage: progress.StageRunError, Note: err.Error()})
			return
		}
		r.emit(progress.Event{RunID: report.RunID, Stage: progress.StageRunDone})
	}()

	for _, pageURL := range pages {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run canceled: %w", err)
		}
		page, err := r.ScrapePage(ctx, pageURL)
		report.Pages = append(report.Pages, page)
		r.emit(progress.Event{
			RunID:   report.RunID,
			Stage:   progress.StagePageDone,
			URL:     pageURL,
			Located: page.Located,
			Stored:  len(page.Stored),
			Skipped: page.Skipped,
			Note:    page.Error,
		})
		switch {
		case err == nil:
		case errors.Is(err, browser.ErrSessionStart), ctx.Err() != nil:
			return report, err
		default:
			logger.Error("Index page failed", zap.String("url", pageURL), zap.Error(err))
		}
	}
	logger.Info("Run finished",
		zap.Int("pages", len(report.Pages)),
		zap.Int("stored", len(report.Records())),
	)
	return report, nil
}

func (r *Runner) emit(evt progress.Event) {
	evt.TS = r.now()
	r.cfg.Progress.Emit(evt)
}

// ScrapePage runs one session over one index page. Teardown runs on every exit path.
func (r *Runner) ScrapePage(ctx context.Context, pageURL string) (report PageReport, err error) {
	report.URL = pageURL
	sess, err := r.start(ctx)
	if err != nil {
		report.Error = err.Error()
		if !errors.Is(err, browser.ErrSessionStart) {
			err = fmt.Errorf("%w: %w", browser.ErrSessionStart, err)
		}
		return report, err
	}
	defer func() {
		if terr := sess.Teardown(); terr != nil {
			r.logger.Warn("Session teardown failed", zap.String("url", pageURL), zap.Error(terr))
		}
	}()

	handles, err := r.locator.Locate(ctx, sess, pageURL, r.cfg.Limit)
	if err != nil {
		metrics.ObservePageLoad(pageURL, "error")
		report.Error = err.Error()
		return report, fmt.Errorf("page %s: %w", pageURL, err)
	}
	metrics.ObservePageLoad(pageURL, "ok")
	report.Located = len(handles)

	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			return report, fmt.Errorf("page %s: %w", pageURL, err)
		}
		rec, ok := r.ProcessWithRetry(ctx, sess, h)
		metrics.ObserveListing(ok)
		if !ok {
			report.Skipped++
			continue
		}
		report.Extracted++
		id, stored, err := r.sink.Store(ctx, rec)
		if err != nil {
			r.logger.Error("Failed to store record",
				zap.Int("listing", h.Index()), zap.String("url", rec.URL), zap.Error(err))
			continue
		}
		if stored {
			metrics.ObserveStored()
			report.Stored = append(report.Stored, Stored{ID: id, Record: rec})
		}
	}
	return report, nil
}

// ProcessWithRetry extracts h and captures its detail URL, retrying the pair as one attempt.
// It returns false when every attempt failed; that outcome is logged, never raised.
func (r *Runner) ProcessWithRetry(ctx context.Context, sess navigator.DetailOpener, h listing.Handle) (listing.Record, bool) {
	var rec listing.Record
	ctrl := r.cfg.Retry
	ctrl.OnFailure = func(attempt int, err error) {
		r.logger.Warn("Error extracting listing",
			zap.Int("listing", h.Index()+1),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	err := ctrl.Do(ctx, func(ctx context.Context, _ int) error {
		started := r.now()
		candidate, err := r.attempt(ctx, sess, h)
		metrics.ObserveAttempt(err == nil, r.now().Sub(started))
		if err != nil {
			return err
		}
		rec = candidate
		return nil
	})
	if err != nil {
		r.logger.Warn("Skipping listing", zap.Int("listing", h.Index()+1), zap.Error(err))
		return listing.Record{}, false
	}
	r.logger.Info("Extracted listing",
		zap.Int("listing", h.Index()+1),
		zap.String("title", rec.Title),
		zap.String("url", rec.URL),
	)
	return rec, true
}

func (r *Runner) attempt(ctx context.Context, sess navigator.DetailOpener, h listing.Handle) (listing.Record, error) {
	rec, err := r.extractor.Extract(ctx, h)
	if err != nil {
		return listing.Record{}, fmt.Errorf("extract: %w", err)
	}
	u, err := r.navigator.NavigateAndCapture(ctx, sess, h)
	if err != nil {
		return listing.Record{}, fmt.Errorf("navigate: %w", err)
	}
	rec.URL = u
	if err := rec.Validate(); err != nil {
		return listing.Record{}, err
	}
	return rec, nil
}

var (
	_ Extractor = (*extract.Extractor)(nil)
	_ Navigator = (*navigator.Navigator)(nil)
	_ Session   = (*browser.Session)(nil)
)
