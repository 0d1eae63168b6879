// Package events defines the progress event contract between the pipeline
// and whatever streams it to clients, plus the sink registry that fans
// events out.
package events

import (
	"sync"
	"time"
)

// Kind is the event type discriminator.
type Kind string

const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindSkipped   Kind = "skipped"
)

// ProgressEvent is an immutable record describing one step's progress.
// Events for a step arrive in causal order: its completed/failed/skipped
// event is always the last one emitted for that step. There is no ordering
// guarantee across steps beyond dependency completion order.
type ProgressEvent struct {
	JobID       string    `json:"job_id"`
	StepID      string    `json:"step_id"`
	Product     string    `json:"product"`
	DisplayName string    `json:"display_name"`
	Kind        Kind      `json:"kind"`
	Percent     float64   `json:"percent"`
	Message     string    `json:"message"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	At          time.Time `json:"at"`
}

// Sink consumes progress events. Implementations must not block for long;
// slow transports buffer internally.
type Sink interface {
	Publish(ev ProgressEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev ProgressEvent)

func (f SinkFunc) Publish(ev ProgressEvent) { f(ev) }

// Registry fans events out to attached sinks. It replaces ambient global
// listener maps: one Registry instance is owned by the pipeline engine and
// passed to collaborators explicitly.
type Registry struct {
	mu    sync.RWMutex
	next  int
	sinks map[int]Sink
}

// NewRegistry returns an empty sink registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[int]Sink)}
}

// Attach registers a sink and returns a token for Detach.
func (r *Registry) Attach(s Sink) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.sinks[id] = s
	return id
}

// Detach removes a previously attached sink.
func (r *Registry) Detach(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, token)
}

// Publish delivers an event to every attached sink. Delivery happens on the
// caller's goroutine, in attach order, so a single step's events stay
// causally ordered through the fan-out.
func (r *Registry) Publish(ev ProgressEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := 0; i < r.next; i++ {
		if s, ok := r.sinks[i]; ok {
			s.Publish(ev)
		}
	}
}
