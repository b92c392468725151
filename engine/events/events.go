// Package events records notable occurrences during a simulation run.
// Events are kept in emission order and mirrored to the logger.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nathoo/simcore/logging"
	"github.com/nathoo/simcore/types"
)

// Event types.
const (
	PhaseChanged       = "phase_changed"
	TransitionRejected = "transition_rejected"
	NoOpSkipped        = "noop_skipped"
	BranchAdded        = "branch_added"
	BranchPruned       = "branch_pruned"
	BranchTerminal     = "branch_terminal"
	SurvivorKept       = "survivor_kept"
	RoundCompleted     = "round_completed"
	RunTerminated      = "run_terminated"
)

// Recorder collects run events. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	log    *slog.Logger
	events []types.Event
	counts map[string]int
}

// NewRecorder returns a recorder that also logs each event at trace
// level. A nil logger discards log output.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{log: logger, counts: map[string]int{}}
}

// Emit appends an event.
func (r *Recorder) Emit(typ string, data map[string]any) {
	r.mu.Lock()
	r.events = append(r.events, types.Event{Type: typ, Data: data})
	r.counts[typ]++
	r.mu.Unlock()

	if r.log.Enabled(context.Background(), logging.LevelTrace) {
		attrs := make([]any, 0, len(data)*2)
		for k, v := range data {
			attrs = append(attrs, k, v)
		}
		r.log.Log(context.Background(), logging.LevelTrace, typ, attrs...)
	}
}

// Count returns how many events of typ were emitted.
func (r *Recorder) Count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[typ]
}

// Events returns a copy of all recorded events in order.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

// Filter returns the events of the given type.
func Filter(evts []types.Event, typ string) []types.Event {
	var out []types.Event
	for _, e := range evts {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
