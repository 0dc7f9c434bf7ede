package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher records audit events. Publishing is fire-and-forget from the
// engine's point of view: a failed emit is logged by the caller, never
// surfaced to the requester.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// stamp fills in the fields every event needs regardless of sink.
func stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

// NopPublisher discards events; used when no audit sink is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }

// MemoryPublisher collects events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, stamp(event))
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event{}, p.events...)
}
