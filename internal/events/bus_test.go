package events

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 2)

	bus.SubscribeFunc(RouteCompleted, func(_ context.Context, e Event) error {
		mu.Lock()
		got = append(got, e.(RouteCompletedEvent).Signature)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	bus.SubscribeFunc(RouteFailed, func(_ context.Context, e Event) error {
		t.Errorf("unexpected event %s", e.Type())
		return nil
	})

	ev := RouteCompletedEvent{BaseEvent: NewBaseEvent(RouteCompleted), Signature: "sig-1"}
	require.NoError(t, bus.Publish(ev))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Equal(t, []string{"sig-1"}, got)
	assert.NotEmpty(t, ev.ID())
	assert.False(t, ev.Timestamp().IsZero())
}

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	errA := errors.New("a failed")
	bus.SubscribeFunc(AdminAction, func(context.Context, Event) error { return errA })
	bus.SubscribeFunc(AdminAction, func(context.Context, Event) error { return nil })

	err := bus.PublishSync(context.Background(), AdminActionEvent{BaseEvent: NewBaseEvent(AdminAction), Action: "pause"})
	assert.ErrorIs(t, err, errA)

	assert.NoError(t, bus.PublishSync(context.Background(), AdminActionEvent{BaseEvent: NewBaseEvent(RouteStarted)}))
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	calls := 0
	sub := bus.SubscribeFunc(RouteStarted, func(context.Context, Event) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, bus.Stats().HandlersPerType[RouteStarted])

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), RouteStartedEvent{BaseEvent: NewBaseEvent(RouteStarted)}))
	assert.Zero(t, calls)
	assert.Empty(t, bus.Stats().HandlersPerType)
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 64)

	var mu sync.Mutex
	count := 0
	bus.SubscribeFunc(RouteFailed, func(context.Context, Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(RouteFailedEvent{BaseEvent: NewBaseEvent(RouteFailed)}))
	}
	require.NoError(t, bus.Shutdown(context.Background()))

	mu.Lock()
	assert.Equal(t, 20, count)
	mu.Unlock()

	assert.ErrorIs(t, bus.Publish(RouteFailedEvent{BaseEvent: NewBaseEvent(RouteFailed)}), ErrBusClosed)
}

func TestSubscribeManyDefaultsToRouterEvents(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 4)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	var seen []EventType
	h := HandlerFunc(func(_ context.Context, e Event) error {
		seen = append(seen, e.Type())
		return nil
	})

	subs := bus.SubscribeMany(h)
	require.Len(t, subs, len(RouterEventTypes))
	for _, typ := range RouterEventTypes {
		require.NoError(t, bus.PublishSync(context.Background(), RouteStartedEvent{BaseEvent: NewBaseEvent(typ)}))
	}
	assert.Equal(t, RouterEventTypes, seen)

	for _, s := range subs {
		s.Unsubscribe()
	}
	only := bus.SubscribeMany(h, RouteFailed)
	assert.Len(t, only, 1)
	assert.Equal(t, map[EventType]int{RouteFailed: 1}, bus.Stats().HandlersPerType)
}

func TestQueuedEventsKeepPublishOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 128)

	var mu sync.Mutex
	var got []string
	record := func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		switch ev := e.(type) {
		case RouteStartedEvent:
			got = append(got, "start:"+ev.Step)
		case RouteCompletedEvent:
			got = append(got, "done:"+ev.Step)
		}
		return nil
	}
	bus.SubscribeFunc(RouteStarted, record)
	bus.SubscribeFunc(RouteCompleted, record)

	var want []string
	for i := 0; i < 50; i++ {
		step := strconv.Itoa(i)
		require.NoError(t, bus.Publish(RouteStartedEvent{BaseEvent: NewBaseEvent(RouteStarted), Step: step}))
		require.NoError(t, bus.Publish(RouteCompletedEvent{BaseEvent: NewBaseEvent(RouteCompleted), Step: step}))
		want = append(want, "start:"+step, "done:"+step)
	}
	require.NoError(t, bus.Shutdown(context.Background()))
	require.NoError(t, bus.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestPublishReportsFullBuffer(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	release := make(chan struct{})
	bus.SubscribeFunc(AdminAction, func(context.Context, Event) error {
		<-release
		return nil
	})

	ev := AdminActionEvent{BaseEvent: NewBaseEvent(AdminAction)}
	var err error
	// the worker blocks in the handler; the single slot fills behind it
	for i := 0; i < 3 && err == nil; i++ {
		err = bus.Publish(ev)
	}
	assert.ErrorIs(t, err, ErrBufferFull)

	close(release)
	require.NoError(t, bus.Shutdown(context.Background()))
	assert.Zero(t, bus.Stats().PendingEvents)
}
