package testutil

import (
	"context"
	"sync"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// RecordingHandler implements shared.EventHandler and remembers every event
// delivered to it. An empty type list subscribes it to all events.
type RecordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	received   []shared.DomainEvent
	err        error
}

// NewRecordingHandler creates a recording handler for the given event types
func NewRecordingHandler(eventTypes ...string) *RecordingHandler {
	return &RecordingHandler{eventTypes: eventTypes}
}

// EventTypes returns the types the handler declared at construction
func (h *RecordingHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle records the event and returns the configured error, if any
func (h *RecordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, event)
	return h.err
}

// Received returns a copy of every event delivered so far
func (h *RecordingHandler) Received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.DomainEvent, len(h.received))
	copy(out, h.received)
	return out
}

// ReceivedCount returns how many events were delivered
func (h *RecordingHandler) ReceivedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

// FailWith makes every subsequent Handle call return err
func (h *RecordingHandler) FailWith(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Reset forgets delivered events and clears any configured error
func (h *RecordingHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = nil
	h.err = nil
}

// StubEvent is a minimal domain event for bus tests
type StubEvent struct {
	shared.BaseDomainEvent
	Payload string
}

// NewStubEvent creates a stub event of the given type scoped to ownerID
func NewStubEvent(eventType string, ownerID uuid.UUID) *StubEvent {
	return &StubEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "StubAggregate", uuid.New(), ownerID),
		Payload:         "stub-payload",
	}
}
