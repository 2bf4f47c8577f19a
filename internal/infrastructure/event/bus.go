// Package event carries domain events from the billing aggregates to
// in-process subscribers. Dispatch is synchronous: a sale is only reported
// recorded after every subscriber saw its events.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/billing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryBus implements shared.EventBus for a single process. A handler
// subscribed without explicit types receives the types it declares through
// EventTypes; a handler declaring none receives every event.
type InMemoryBus struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	catchAll []shared.EventHandler
	logger   *zap.Logger
}

// NewInMemoryBus creates an event bus with no subscribers
func NewInMemoryBus(logger *zap.Logger) *InMemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryBus{
		byType: make(map[string][]shared.EventHandler),
		logger: logger,
	}
}

// Subscribe registers the handler for the given event types. When no types
// are given the handler's own EventTypes decide, and an empty declaration
// subscribes it to everything.
func (b *InMemoryBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if handler == nil {
		return
	}
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(eventTypes) == 0 {
		b.catchAll = append(b.catchAll, handler)
		return
	}
	for _, eventType := range eventTypes {
		b.byType[eventType] = append(b.byType[eventType], handler)
	}
}

// Unsubscribe removes the handler from every subscription
func (b *InMemoryBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.byType {
		b.byType[eventType] = withoutHandler(handlers, handler)
	}
	b.catchAll = withoutHandler(b.catchAll, handler)
}

// Publish delivers each event to its subscribers in subscription order.
// A failing or panicking handler is logged and does not stop delivery:
// the invoice is already committed, so the sale must not fail here.
func (b *InMemoryBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		if evt == nil {
			continue
		}
		for _, handler := range b.handlersFor(evt.EventType()) {
			b.deliver(ctx, handler, evt)
		}
	}
	return nil
}

func (b *InMemoryBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]shared.EventHandler, 0, len(b.byType[eventType])+len(b.catchAll))
	handlers = append(handlers, b.byType[eventType]...)
	handlers = append(handlers, b.catchAll...)
	return handlers
}

func (b *InMemoryBus) deliver(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", evt.EventType()),
				zap.String("event_id", evt.EventID().String()),
				zap.Any("panic", r))
		}
	}()

	if err := handler.Handle(ctx, evt); err != nil {
		b.logger.Error("event handler failed",
			zap.String("event_type", evt.EventType()),
			zap.String("event_id", evt.EventID().String()),
			zap.String("aggregate_id", evt.AggregateID().String()),
			zap.Error(err))
	}
}

func withoutHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	kept := handlers[:0]
	for _, h := range handlers {
		if h != target {
			kept = append(kept, h)
		}
	}
	return kept
}

// AuditLogHandler writes every billing event to the structured log. It is the
// default subscriber wired at startup, giving the shop owner a trail of who
// changed which invoice and when.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit handler writing to the given logger
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger}
}

// EventTypes returns an empty slice: the audit trail records everything
func (h *AuditLogHandler) EventTypes() []string { return nil }

// Handle writes one audit line per event
func (h *AuditLogHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if evt == nil {
		return fmt.Errorf("audit handler received nil event")
	}
	h.logger.Info("billing event",
		zap.String("event_type", evt.EventType()),
		zap.String("aggregate_type", evt.AggregateType()),
		zap.String("aggregate_id", evt.AggregateID().String()),
		zap.String("owner_id", evt.OwnerID().String()),
		zap.Time("occurred_at", evt.OccurredAt()))
	return nil
}

var _ shared.EventBus = (*InMemoryBus)(nil)
var _ shared.EventHandler = (*AuditLogHandler)(nil)
