// Package events is the in-process pub/sub layer the domain modules talk
// over. Publishers announce what happened (a hold released, a deposit paid);
// whoever cares subscribes. No business logic lives here.
package events

import (
	"context"
	"time"
)

// Event is anything that can be published on the bus.
type Event interface {
	// EventName identifies the event type; subscribers key on it.
	EventName() string
	// OccurredAt is when the event happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every event shares; embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt is when the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a fresh BaseEvent with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one or more types.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus connects publishers to subscribers.
type Bus interface {
	// Publish hands the event to every handler subscribed to its name.
	// Handlers run asynchronously; publishers never wait.
	Publish(ctx context.Context, event Event)

	// PublishSync runs the handlers inline and returns the first error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the event name, as returned by
	// Event.EventName.
	Subscribe(eventName string, handler Handler)
}
