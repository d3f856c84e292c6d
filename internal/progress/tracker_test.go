package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	cases := map[string]struct {
		evt     Event
		wantErr bool
	}{
		"valid start":      {evt: Event{RunID: "r", TS: now, Stage: StageRunStart}},
		"valid page":       {evt: Event{RunID: "r", TS: now, Stage: StagePageDone, URL: "u"}},
		"missing run":      {evt: Event{TS: now, Stage: StageRunStart}, wantErr: true},
		"missing ts":       {evt: Event{RunID: "r", Stage: StageRunStart}, wantErr: true},
		"page without url": {evt: Event{RunID: "r", TS: now, Stage: StagePageDone}, wantErr: true},
		"negative count":   {evt: Event{RunID: "r", TS: now, Stage: StagePageDone, URL: "u", Stored: -1}, wantErr: true},
		"unknown stage":    {evt: Event{RunID: "r", TS: now, Stage: "NOPE"}, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTrackerFoldsRun(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil)
	require.Equal(t, StateIdle, tr.Snapshot().State)

	now := time.Unix(1700000000, 0).UTC()
	tr.Emit(Event{RunID: "run-1", TS: now, Stage: StageRunStart, Command: "scrape"})
	tr.Emit(Event{RunID: "run-1", TS: now, Stage: StagePageDone, URL: "https://a", Located: 3, Stored: 2, Skipped: 1})
	tr.Emit(Event{RunID: "run-1", TS: now, Stage: StagePageDone, URL: "https://b", Note: "timeout"})
	tr.Emit(Event{RunID: "other", TS: now, Stage: StagePageDone, URL: "https://c", Stored: 9})

	s := tr.Snapshot()
	require.Equal(t, StateRunning, s.State)
	require.Equal(t, "scrape", s.Command)
	require.Equal(t, 2, s.Pages)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, 3, s.Located)
	require.Equal(t, 2, s.Stored)
	require.Equal(t, 1, s.Skipped)
	require.Equal(t, "https://b", s.LastPage)

	tr.Emit(Event{RunID: "run-1", TS: now.Add(time.Second), Stage: StageRunDone})
	s = tr.Snapshot()
	require.Equal(t, StateFinished, s.State)
	require.Equal(t, now.Add(time.Second), *s.Updated)

	tr.Emit(Event{RunID: "run-2", TS: now, Stage: StageRunStart, Command: "zones"})
	tr.Emit(Event{RunID: "run-2", TS: now, Stage: StageRunError, Note: "boom"})
	s = tr.Snapshot()
	require.Equal(t, StateFailed, s.State)
	require.Equal(t, "boom", s.Error)
	require.Zero(t, s.Stored)
}

func TestTrackerDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewTracker(zap.New(core))
	tr.Emit(Event{Stage: StageRunStart})
	require.Equal(t, StateIdle, tr.Snapshot().State)
	require.Equal(t, 1, logs.FilterMessage("discarding invalid progress event").Len())

	var nilTracker *Tracker
	nilTracker.Emit(Event{RunID: "r", TS: time.Now(), Stage: StageRunStart})
}

func TestTrackerConcurrentEmit(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil)
	now := time.Now().UTC()
	tr.Emit(Event{RunID: "r", TS: now, Stage: StageRunStart})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Emit(Event{RunID: "r", TS: now, Stage: StagePageDone, URL: "u", Stored: 1})
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, tr.Snapshot().Stored)
}
