// Package notes mirrors the assistant's money and calendar actions onto the
// CRM contact timeline, so studio staff can follow a lead's history without
// reading service logs. It subscribes to domain events and inverts the
// dependency: the publishing modules never know notes exist.
package notes

import (
	"context"
	"fmt"

	"inkflow_backend/internal/events"
	"inkflow_backend/platform/logger"
)

// NoteWriter appends one note to a contact's timeline.
type NoteWriter interface {
	CreateContactNote(ctx context.Context, contactID, body string) error
}

// Recorder turns domain events into contact notes.
type Recorder struct {
	notes NoteWriter
	log   *logger.Logger
}

func NewRecorder(notes NoteWriter, log *logger.Logger) *Recorder {
	return &Recorder{notes: notes, log: log}
}

// Register subscribes the recorder to every event it mirrors.
func (r *Recorder) Register(bus events.Bus) {
	bus.Subscribe(events.HoldCreated{}.EventName(), r)
	bus.Subscribe(events.HoldWarned{}.EventName(), r)
	bus.Subscribe(events.HoldReleased{}.EventName(), r)
	bus.Subscribe(events.HoldConfirmed{}.EventName(), r)
	bus.Subscribe(events.DepositLinkSent{}.EventName(), r)
	bus.Subscribe(events.DepositPaid{}.EventName(), r)
	bus.Subscribe(events.StageChanged{}.EventName(), r)
}

// Handle writes the note for one event. Unknown events are ignored rather
// than errored; a note is never worth failing a publisher over.
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	contactID, body := noteFor(event)
	if contactID == "" || body == "" {
		return nil
	}
	if err := r.notes.CreateContactNote(ctx, contactID, body); err != nil {
		r.log.CollaboratorError("crm", "write contact note for "+event.EventName(), err)
		return err
	}
	return nil
}

func noteFor(event events.Event) (contactID, body string) {
	switch e := event.(type) {
	case events.HoldCreated:
		return e.ContactID, fmt.Sprintf("Held %s for the consult (appointment %s), pending deposit.",
			e.SlotStart.Format("Mon Jan 2 3:04 PM"), e.AppointmentID)
	case events.HoldWarned:
		return e.ContactID, fmt.Sprintf("Sent hold expiry warning for appointment %s.", e.AppointmentID)
	case events.HoldReleased:
		return e.ContactID, fmt.Sprintf("Released held appointment %s after inactivity; time reopened.", e.AppointmentID)
	case events.HoldConfirmed:
		return e.ContactID, fmt.Sprintf("Deposit paid (order %s); appointment %s confirmed.", e.OrderID, e.AppointmentID)
	case events.DepositLinkSent:
		return e.ContactID, fmt.Sprintf("Sent deposit link for $%d.%02d (payment link %s).",
			e.AmountCents/100, e.AmountCents%100, e.PaymentLinkID)
	case events.DepositPaid:
		return e.ContactID, fmt.Sprintf("Deposit payment reconciled (order %s).", e.OrderID)
	case events.StageChanged:
		return e.ContactID, fmt.Sprintf("Pipeline stage moved %s -> %s.", stageOrStart(e.From), e.To)
	}
	return "", ""
}

func stageOrStart(from string) string {
	if from == "" {
		return "(new)"
	}
	return from
}
