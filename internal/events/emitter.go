package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter stores registered handlers in memory and dispatches
// events to them. It also implements StageObserver and ProgressObserver, so it
// can be handed directly to the pipeline and the scheduler.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

var (
	_ EventEmitter     = (*InMemoryEventEmitter)(nil)
	_ StageObserver    = (*InMemoryEventEmitter)(nil)
	_ ProgressObserver = (*InMemoryEventEmitter)(nil)
)

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// If any handler returns an error, the event will still be sent to all other handlers,
// and the first error encountered will be returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *Event) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// OnStageStart emits a stage_started event.
func (e *InMemoryEventEmitter) OnStageStart(ctx context.Context, ev StageEvent) {
	e.publish(ctx, TypeStageStarted, ev)
}

// OnStageComplete emits a stage_completed event.
func (e *InMemoryEventEmitter) OnStageComplete(ctx context.Context, ev StageEvent) {
	e.publish(ctx, TypeStageCompleted, ev)
}

// OnStageError emits a stage_failed event carrying the error text.
func (e *InMemoryEventEmitter) OnStageError(ctx context.Context, ev StageEvent, err error) {
	if err != nil && ev.Error == "" {
		ev.Error = err.Error()
	}
	e.publish(ctx, TypeStageFailed, ev)
}

// OnProgress emits a progress event.
func (e *InMemoryEventEmitter) OnProgress(ctx context.Context, ev ProgressEvent) {
	e.publish(ctx, TypeProgress, ev)
}

// publish never returns an error; observers cannot influence the caller.
func (e *InMemoryEventEmitter) publish(ctx context.Context, eventType string, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		e.logger.Error("failed to build event", "error", err, "event_type", eventType)
		return
	}
	_ = e.EmitEvent(ctx, event)
}
