package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"propertyhub_backend/platform/logger"
)

// InMemoryBus is an in-process Bus implementation. Async handlers run in
// their own goroutine with a detached context so a cancelled HTTP request
// never aborts a notification. Handler failures are logged, never returned
// to the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	log      *logger.Logger
	timeout  time.Duration
}

// NewInMemoryBus creates an in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
		timeout:  30 * time.Second,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()

			// Detach from the caller's context so in-flight handlers
			// survive the request that published the event.
			hctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()

			if err := h.Handle(hctx, event); err != nil {
				b.log.Error("event_handler_failed",
					"event", event.EventName(),
					"error", err.Error(),
				)
			}
		}(handler)
	}
}

// PublishSync dispatches the event and waits for all handlers, joining
// their errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Drain blocks until all asynchronously dispatched handlers finish, or the
// context expires. Called during graceful shutdown.
func (b *InMemoryBus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
