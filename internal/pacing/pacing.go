// Package pacing provides the randomized waits and per-host throttling used between browser
// steps to let dynamic pages settle and to avoid tripping rate limits.
package pacing

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Range is an inclusive interval of wait durations.
type Range struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// Validate rejects negative or inverted ranges.
func (r Range) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("wait range must be non-negative, got [%s, %s]", r.Min, r.Max)
	}
	if r.Max < r.Min {
		return fmt.Errorf("wait range max %s is below min %s", r.Max, r.Min)
	}
	return nil
}

// Pick returns a uniformly random duration within the range.
func (r Range) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	span := int64(r.Max-r.Min) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return r.Min + (r.Max-r.Min)/2
	}
	return r.Min + time.Duration(n.Int64())
}

// Pauser suspends the caller for a duration or until ctx ends.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser is the real-time Pauser.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Wait pauses for a random duration drawn from r.
func Wait(ctx context.Context, p Pauser, r Range) time.Duration {
	d := r.Pick()
	if p == nil {
		p = TimerPauser{}
	}
	p.Pause(ctx, d)
	return d
}

// Throttle enforces a per-host page-load rate. A zero value or zero QPS never blocks.
type Throttle struct {
	qps      float64
	limiters sync.Map
}

// NewThrottle creates a Throttle allowing qps loads per second per host.
func NewThrottle(qps float64) *Throttle {
	return &Throttle{qps: qps}
}

// Wait blocks until a load of rawURL is permitted.
func (t *Throttle) Wait(ctx context.Context, rawURL string) error {
	if t == nil || t.qps <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := t.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(t.qps), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}
