// Package retry bounds repeated attempts of a fallible step with randomized backoff.
package retry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

// ErrExhausted is returned once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// DefaultMaxAttempts is used when MaxAttempts is not positive.
const DefaultMaxAttempts = 3

// Controller runs a step up to MaxAttempts times.
type Controller struct {
	MaxAttempts int
	Backoff     pacing.Range
	Pauser      pacing.Pauser
	Logger      *zap.Logger
	// OnFailure, when set, observes every failed attempt.
	OnFailure func(attempt int, err error)
}

// Do calls fn with attempt numbers starting at 1 until it succeeds, the bound is reached or
// ctx ends. A randomized backoff separates failed attempts; none follows the final attempt.
// Once ctx is done no further attempt is made.
func (c Controller) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pauser := c.Pauser
	if pauser == nil {
		pauser = pacing.TimerPauser{}
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("attempt %d: %w", attempt, err)
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		// Page-load timeouts are transient; only the caller's own cancellation stops the loop.
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("attempt %d: %w: %w", attempt, cerr, err)
		}
		last = err
		if c.OnFailure != nil {
			c.OnFailure(attempt, err)
		}
		if attempt == maxAttempts {
			break
		}
		delay := c.Backoff.Pick()
		logger.Warn("Attempt failed, backing off",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		pauser.Pause(ctx, delay)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, last)
}
