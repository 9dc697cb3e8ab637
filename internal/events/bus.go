// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed  = errors.New("event bus is shutting down")
	ErrBufferFull = errors.New("event channel full")
)

type handlerEntry struct {
	id      string
	handler Handler
}

// Bus fans router events out to subscribers. A single worker delivers queued
// events in publish order, so route.started always reaches a handler before
// the matching route.completed or route.failed.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	closed   bool

	queue   chan Event
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		logger:   logger.Named("event_bus"),
		handlers: make(map[EventType][]handlerEntry),
		queue:    make(chan Event, bufferSize),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe adds handler for eventType. Handlers of one type are called in
// subscription order.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{id: id, bus: b, typ: eventType}
}

func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues event without blocking. It fails with ErrBufferFull when the
// worker is behind and with ErrBusClosed after Shutdown.
func (b *Bus) Publish(event Event) error {
	// RLock держится до конца отправки: Shutdown не закроет шину между проверкой и send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.queue <- event:
		return nil
	default:
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())),
			zap.String("event_id", event.ID()))
		return ErrBufferFull
	}
}

// PublishSync delivers event on the caller's goroutine. Every handler runs;
// their errors are joined.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	entries := append([]handlerEntry(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		if err := e.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", e.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("handlers failed for %s: %w", event.Type(), err)
	}
	return nil
}

func (b *Bus) run() {
	defer close(b.stopped)
	for {
		select {
		case ev := <-b.queue:
			b.deliver(ev)
		case <-b.stop:
			// после stop новых событий нет, дочитываем очередь
			for {
				select {
				case ev := <-b.queue:
					b.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(ev Event) {
	// ошибки уже залогированы в PublishSync
	_ = b.PublishSync(context.Background(), ev)
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[eventType]
	for i, e := range entries {
		if e.id == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = entries
	}
	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown rejects further publishes and waits until the queued events are
// delivered or ctx ends. Calling it again is a no-op.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.stop)
		b.logger.Info("Shutting down event bus", zap.Int("pending", len(b.queue)))
	})

	select {
	case <-b.stopped:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending", len(b.queue)))
		return ctx.Err()
	}
}

type Stats struct {
	BufferSize      int
	PendingEvents   int
	HandlersPerType map[EventType]int
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		BufferSize:      cap(b.queue),
		PendingEvents:   len(b.queue),
		HandlersPerType: make(map[EventType]int, len(b.handlers)),
	}
	for t, entries := range b.handlers {
		stats.HandlersPerType[t] = len(entries)
	}
	return stats
}
