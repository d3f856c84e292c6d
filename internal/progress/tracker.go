package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the coarse run state reported by Status.
type State string

// Run states.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Status is a point-in-time view of the current run.
type Status struct {
	RunID    string     `json:"run_id,omitempty"`
	Command  string     `json:"command,omitempty"`
	State    State      `json:"state"`
	Started  *time.Time `json:"started,omitempty"`
	Updated  *time.Time `json:"updated,omitempty"`
	Pages    int        `json:"pages"`
	Failed   int        `json:"failed_pages"`
	Located  int        `json:"located"`
	Stored   int        `json:"stored"`
	Skipped  int        `json:"skipped"`
	LastPage string     `json:"last_page,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Tracker folds events into a Status. It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	status Status
	logger *zap.Logger
}

// NewTracker returns an idle Tracker. Invalid events are logged at debug level and dropped.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{status: Status{State: StateIdle}, logger: logger}
}

// Emit implements Emitter. A RUN_START resets the counters; events for any other run are
// ignored.
func (t *Tracker) Emit(evt Event) {
	if t == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		t.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	ts := evt.TS

	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.status
	if evt.Stage != StageRunStart && evt.RunID != s.RunID {
		return
	}
	switch evt.Stage {
	case StageRunStart:
		*s = Status{RunID: evt.RunID, Command: evt.Command, State: StateRunning, Started: &ts}
	case StagePageDone:
		s.Pages++
		if evt.Note != "" {
			s.Failed++
		}
		s.Located += evt.Located
		s.Stored += evt.Stored
		s.Skipped += evt.Skipped
		s.LastPage = evt.URL
	case StageRunDone:
		s.State = StateFinished
	case StageRunError:
		s.State = StateFailed
		s.Error = evt.Note
	}
	s.Updated = &ts
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	if t == nil {
		return Status{State: StateIdle}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
