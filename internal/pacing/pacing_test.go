package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPauser struct {
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.delays = append(p.delays, d)
}

func TestRangePickWithinBounds(t *testing.T) {
	t.Parallel()

	r := Range{Min: 5 * time.Millisecond, Max: 15 * time.Millisecond}
	for i := 0; i < 200; i++ {
		d := r.Pick()
		require.GreaterOrEqual(t, d, r.Min)
		require.LessOrEqual(t, d, r.Max)
	}
	require.Equal(t, time.Second, Range{Min: time.Second, Max: time.Second}.Pick())
	require.Zero(t, Range{}.Pick())
}

func TestRangeValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Range{Min: time.Second, Max: 2 * time.Second}.Validate())
	require.Error(t, Range{Min: 2 * time.Second, Max: time.Second}.Validate())
	require.Error(t, Range{Min: -time.Second}.Validate())
}

func TestWaitUsesPauser(t *testing.T) {
	t.Parallel()

	p := &recordingPauser{}
	d := Wait(context.Background(), p, Range{Min: time.Minute, Max: time.Minute})
	require.Equal(t, time.Minute, d)
	require.Equal(t, []time.Duration{time.Minute}, p.delays)
}

func TestTimerPauserHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerPauser{}.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}

func TestThrottleDisabledNeverBlocks(t *testing.T) {
	t.Parallel()

	var nilThrottle *Throttle
	require.NoError(t, nilThrottle.Wait(context.Background(), "https://example.com"))

	th := NewThrottle(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Wait(context.Background(), "https://example.com"))
	}
}

func TestThrottleCanceledContext(t *testing.T) {
	t.Parallel()

	th := NewThrottle(0.001)
	require.NoError(t, th.Wait(context.Background(), "https://example.com/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, th.Wait(ctx, "https://example.com/b"), "second load on the same host must wait")
	require.NoError(t, th.Wait(context.Background(), "https://other.example.com/"), "hosts are throttled independently")
}
