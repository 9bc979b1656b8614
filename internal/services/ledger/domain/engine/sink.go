package engine

import (
	"context"
	"sync"

	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
)

// Sink receives committed notifications. Notify is called synchronously
// after commit and must not block.
type Sink interface {
	Notify(ctx context.Context, evt event.Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, evt event.Event)

// Notify implements Sink.
func (fn SinkFunc) Notify(ctx context.Context, evt event.Event) {
	fn(ctx, evt)
}

// Recorder is a Sink that keeps every notification it receives.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// Notify implements Sink.
func (r *Recorder) Notify(_ context.Context, evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt.Clone())
}

// Events returns a copy of the recorded notifications in arrival order.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Clone()
	}
	return out
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
