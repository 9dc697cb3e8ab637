// internal/events/types.go
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	RouteStarted   EventType = "route.started"
	RouteCompleted EventType = "route.completed"
	RouteFailed    EventType = "route.failed"

	AdminAction EventType = "admin.action"
)

// Event is the base interface for all events.
type Event interface {
	ID() string
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"id"`
	EventType EventType `json:"type"`
	EventTime time.Time `json:"time"`
}

// NewBaseEvent stamps a new event of type t.
func NewBaseEvent(t EventType) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: t,
		EventTime: time.Now().UTC(),
	}
}

func (e BaseEvent) ID() string { return e.EventID }

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// RouteStartedEvent is emitted before a route transaction is submitted.
type RouteStartedEvent struct {
	BaseEvent
	Step      string `json:"step"`
	User      string `json:"user"`
	Legs      int    `json:"legs"`
	UserMaxIn uint64 `json:"user_max_in"`
}

// RouteCompletedEvent is emitted when a route commits.
type RouteCompletedEvent struct {
	BaseEvent
	Step         string        `json:"step"`
	User         string        `json:"user"`
	Signature    string        `json:"signature"`
	Slot         uint64        `json:"slot"`
	Legs         int           `json:"legs"`
	TotalSpent   uint64        `json:"total_spent"`
	TotalOut     uint64        `json:"total_out"`
	Fee          uint64        `json:"fee"`
	FeeBps       uint16        `json:"fee_bps"`
	ComputeUnits uint64        `json:"compute_units"`
	Duration     time.Duration `json:"duration"`
}

// RouteFailedEvent is emitted when a route is rejected. ErrorName is the
// router error name when the router rejected it.
type RouteFailedEvent struct {
	BaseEvent
	Step      string        `json:"step"`
	User      string        `json:"user"`
	Legs      int           `json:"legs"`
	ErrorName string        `json:"error_name,omitempty"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
}

// AdminActionEvent is emitted for pause, unpause, init_config and set_config.
type AdminActionEvent struct {
	BaseEvent
	Action    string `json:"action"`
	Admin     string `json:"admin"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}
