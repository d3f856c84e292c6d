// Package navigator moves a session into a listing's detail tab, captures what is needed from
// it and always returns focus to the main tab.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/listing"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

var (
	// ErrNoNewTab is returned when the opener did not produce a new window handle.
	ErrNoNewTab = errors.New("no new window handle after open")
	// ErrEmptyURL is returned when the detail tab reports no location.
	ErrEmptyURL = errors.New("detail page url is empty")
)

// State is a position in the detail-visit state machine.
type State int

// Visit states.
const (
	// Idle: only the main handle is open and focused.
	Idle State = iota
	// Opened: a detail handle exists and has focus.
	Opened
	// Captured: the detail page has been read; cleanup is pending.
	Captured
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opened:
		return "opened"
	case Captured:
		return "captured"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Windows is the window-handle surface the state machine needs.
type Windows interface {
	MainHandle() string
	Handles() []string
	SwitchTo(ctx context.Context, handle string) error
	CurrentURL(ctx context.Context) (string, error)
	CloseHandle(ctx context.Context, handle string) error
}

// DetailOpener can open a listing's detail view in a new tab.
type DetailOpener interface {
	Windows
	OpenDetail(ctx context.Context, h listing.Handle, trigger string) error
}

// Config controls the navigator.
type Config struct {
	// DetailTrigger selects the element inside a listing that opens its detail tab.
	DetailTrigger string
	// Settle is waited after switching into the detail tab and after returning to main.
	Settle pacing.Range
	Pauser pacing.Pauser
	// Observer, when set, is told about every state entered.
	Observer func(State)
}

// Navigator runs detail visits.
type Navigator struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Navigator.
func New(cfg Config, logger *zap.Logger) *Navigator {
	if cfg.DetailTrigger == "" {
		cfg.DetailTrigger = listing.DefaultSelectors().DetailTrigger
	}
	if cfg.Pauser == nil {
		cfg.Pauser = pacing.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{cfg: cfg, logger: logger}
}

// NavigateAndCapture opens the listing's detail tab and returns its canonical URL.
func (n *Navigator) NavigateAndCapture(ctx context.Context, w DetailOpener, h listing.Handle) (string, error) {
	return Visit(ctx, n, w,
		func(ctx context.Context) error { return w.OpenDetail(ctx, h, n.cfg.DetailTrigger) },
		func(ctx context.Context) (string, error) {
			u, err := w.CurrentURL(ctx)
			if err != nil {
				return "", fmt.Errorf("read detail url: %w", err)
			}
			if u == "" {
				return "", ErrEmptyURL
			}
			return u, nil
		},
	)
}

// Visit runs Idle -> Opened -> Captured -> Idle: open creates a tab, capture reads it with the
// new tab focused. Whatever happens, every non-main handle is closed and main is refocused
// before Visit returns.
func Visit[T any](
	ctx context.Context,
	n *Navigator,
	w Windows,
	open func(context.Context) error,
	capture func(context.Context) (T, error),
) (result T, err error) {
	var zero T
	main := w.MainHandle()
	before := w.Handles()
	n.enter(Idle)

	defer func() {
		if rerr := n.restore(ctx, w, main); rerr != nil {
			err = errors.Join(err, rerr)
			result = zero
		}
	}()

	if err := open(ctx); err != nil {
		return zero, fmt.Errorf("open detail: %w", err)
	}
	detail, ok := newest(before, w.Handles())
	if !ok {
		return zero, ErrNoNewTab
	}
	if err := w.SwitchTo(ctx, detail); err != nil {
		return zero, fmt.Errorf("switch to detail: %w", err)
	}
	n.enter(Opened)
	pacing.Wait(ctx, n.cfg.Pauser, n.cfg.Settle)

	v, err := capture(ctx)
	n.enter(Captured)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// restore closes every non-main handle and refocuses main. Close failures are logged; a failed
// refocus is returned because the next listing cannot run without the main tab.
func (n *Navigator) restore(ctx context.Context, w Windows, main string) error {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, h := range w.Handles() {
		if h == main {
			continue
		}
		if err := w.CloseHandle(cleanupCtx, h); err != nil {
			n.logger.Warn("Failed to close detail tab", zap.String("handle", h), zap.Error(err))
		}
	}
	if err := w.SwitchTo(cleanupCtx, main); err != nil {
		n.logger.Error("Failed to refocus main tab", zap.String("handle", main), zap.Error(err))
		return fmt.Errorf("refocus main: %w", err)
	}
	n.enter(Idle)
	pacing.Wait(ctx, n.cfg.Pauser, n.cfg.Settle)
	return nil
}

func (n *Navigator) enter(s State) {
	if n.cfg.Observer != nil {
		n.cfg.Observer(s)
	}
}

func newest(before, after []string) (string, bool) {
	for i := len(after) - 1; i >= 0; i-- {
		if !slices.Contains(before, after[i]) {
			return after[i], true
		}
	}
	return "", false
}
