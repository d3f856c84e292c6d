package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-extractor/internal/browser/browsertest"
	"github.com/JakeFAU/listing-extractor/internal/pacing"
)

type countingPauser struct {
	delays []time.Duration
}

func (p *countingPauser) Pause(_ context.Context, d time.Duration) {
	p.delays = append(p.delays, d)
}

var settle = pacing.Range{Min: 5 * time.Second, Max: 15 * time.Second}

func TestLocateHonorsLimit(t *testing.T) {
	t.Parallel()

	fake := browsertest.New().Serve("https://example.com/index", &browsertest.Page{
		Listings: []*browsertest.Listing{{Markup: "a"}, {Markup: "b"}, {Markup: "c"}},
	})
	p := &countingPauser{}
	l := New("", settle, p, nil)

	handles, err := l.Locate(context.Background(), fake, "https://example.com/index", 2)
	require.NoError(t, err)
	require.Len(t, handles, 2)
	require.Equal(t, 0, handles[0].Index())
	require.Equal(t, 1, handles[1].Index())
	require.Len(t, p.delays, 1)
	require.GreaterOrEqual(t, p.delays[0], settle.Min)
	require.LessOrEqual(t, p.delays[0], settle.Max)

	all, err := l.Locate(context.Background(), fake, "https://example.com/index", 0)
	require.NoError(t, err)
	require.Len(t, all, 3, "a non-positive limit means no cap")
}

func TestLocateEmptyPageIsNotAnError(t *testing.T) {
	t.Parallel()

	fake := browsertest.New().Serve("https://example.com/empty", &browsertest.Page{})
	p := &countingPauser{}

	handles, err := New("", settle, p, nil).Locate(context.Background(), fake, "https://example.com/empty", 10)
	require.NoError(t, err)
	require.NotNil(t, handles)
	require.Empty(t, handles)
	require.Len(t, p.delays, 1, "only the configured settle wait happens")
}

func TestLocateLoadFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("timeout")
	fake := browsertest.New().FailLoad("https://example.com/down", boom)
	p := &countingPauser{}

	_, err := New("", settle, p, nil).Locate(context.Background(), fake, "https://example.com/down", 10)
	require.ErrorIs(t, err, boom)
	require.Empty(t, p.delays, "no settle wait after a failed load")
}

func TestLocateCanceledDuringSettle(t *testing.T) {
	t.Parallel()

	fake := browsertest.New().Serve("https://example.com/index", &browsertest.Page{
		Listings: []*browsertest.Listing{{Markup: "a"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("", settle, pacing.TimerPauser{}, nil).Locate(ctx, fake, "https://example.com/index", 1)
	require.ErrorIs(t, err, context.Canceled)
}
