package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StagePageDone Stage = "PAGE_DONE"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures a single milestone of a command run.
type Event struct {
	// RunID identifies the run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Command names the CLI command emitting the event.
	Command string
	// URL is the page a PAGE_DONE event reports on.
	URL string
	// Located, Stored and Skipped are per-page deltas.
	Located int
	Stored  int
	Skipped int
	// Note carries error text for failed pages and runs.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePageDone:
		if e.URL == "" {
			return errors.New("page done requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Located < 0 || e.Stored < 0 || e.Skipped < 0 {
		return errors.New("counts must be >= 0")
	}
	return nil
}

// Emitter receives progress events. Implementations must not block.
type Emitter interface {
	Emit(Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}
