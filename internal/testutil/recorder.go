package testutil

import (
	"sync"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/events"
)

// EventRecorder is an events.Sink that stores everything it receives.
type EventRecorder struct {
	mu  sync.Mutex
	evs []events.ProgressEvent
}

func (r *EventRecorder) Publish(ev events.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []events.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.ProgressEvent, len(r.evs))
	copy(out, r.evs)
	return out
}

// ByStep groups recorded events by step ID, preserving arrival order.
func (r *EventRecorder) ByStep() map[string][]events.ProgressEvent {
	out := make(map[string][]events.ProgressEvent)
	for _, ev := range r.Events() {
		out[ev.StepID] = append(out[ev.StepID], ev)
	}
	return out
}
