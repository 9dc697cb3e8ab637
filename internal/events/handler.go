// internal/events/handler.go
package events

import (
	"context"
)

// Handler receives events from the bus worker. Handle must not block for long:
// the worker delivers events one at a time.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets an ordinary function serve as a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// RouterEventTypes lists every event the router simulation publishes.
var RouterEventTypes = []EventType{RouteStarted, RouteCompleted, RouteFailed, AdminAction}

// Subscription detaches a handler from the bus.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}

// SubscribeMany subscribes handler to each of types. With no types it
// subscribes to RouterEventTypes.
func (b *Bus) SubscribeMany(handler Handler, types ...EventType) []Subscription {
	if len(types) == 0 {
		types = RouterEventTypes
	}
	subs := make([]Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, b.Subscribe(t, handler))
	}
	return subs
}
