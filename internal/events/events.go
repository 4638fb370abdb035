// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"inkflow_backend/platform/events"
	"inkflow_backend/platform/logger"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = events.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Conversation Domain Events
// =============================================================================

// MessageReceived is published when an inbound conversation message webhook
// has been accepted for processing.
type MessageReceived struct {
	BaseEvent
	ContactID  string `json:"contactId"`
	Body       string `json:"body"`
	Channel    string `json:"channel"`
	Generation int64  `json:"generation"`
}

func (e MessageReceived) EventName() string { return "conversation.message.received" }

// TurnAnswered is published after a turn produced an outbound reply.
type TurnAnswered struct {
	BaseEvent
	ContactID     string `json:"contactId"`
	Route         string `json:"route"`
	InternalNotes string `json:"internalNotes"`
	Bubbles       int    `json:"bubbles"`
}

func (e TurnAnswered) EventName() string { return "conversation.turn.answered" }

// =============================================================================
// Hold Domain Events
// =============================================================================

// HoldCreated is published when a slot selection creates a new hold.
type HoldCreated struct {
	BaseEvent
	ContactID     string    `json:"contactId"`
	AppointmentID string    `json:"appointmentId"`
	SlotStart     time.Time `json:"slotStart"`
}

func (e HoldCreated) EventName() string { return "hold.created" }

// HoldWarned is published when the inactivity warning fires for a hold.
type HoldWarned struct {
	BaseEvent
	ContactID     string `json:"contactId"`
	AppointmentID string `json:"appointmentId"`
}

func (e HoldWarned) EventName() string { return "hold.warned" }

// HoldReleased is published when an unpaid hold is released and the
// underlying appointment cancelled.
type HoldReleased struct {
	BaseEvent
	ContactID     string `json:"contactId"`
	AppointmentID string `json:"appointmentId"`
}

func (e HoldReleased) EventName() string { return "hold.released" }

// HoldConfirmed is published when a deposit payment confirms a hold.
type HoldConfirmed struct {
	BaseEvent
	ContactID     string `json:"contactId"`
	AppointmentID string `json:"appointmentId"`
	OrderID       string `json:"orderId"`
}

func (e HoldConfirmed) EventName() string { return "hold.confirmed" }

// =============================================================================
// Payments Domain Events
// =============================================================================

// DepositLinkSent is published when a deposit payment link was generated
// and sent to a lead.
type DepositLinkSent struct {
	BaseEvent
	ContactID     string `json:"contactId"`
	PaymentLinkID string `json:"paymentLinkId"`
	AmountCents   int64  `json:"amountCents"`
}

func (e DepositLinkSent) EventName() string { return "payments.deposit.link_sent" }

// DepositPaid is published when a payment-completed webhook is reconciled
// to a contact.
type DepositPaid struct {
	BaseEvent
	ContactID string `json:"contactId"`
	OrderID   string `json:"orderId"`
}

func (e DepositPaid) EventName() string { return "payments.deposit.paid" }

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// StageChanged is published after a successful opportunity stage transition.
type StageChanged struct {
	BaseEvent
	ContactID string `json:"contactId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func (e StageChanged) EventName() string { return "pipeline.stage.changed" }
