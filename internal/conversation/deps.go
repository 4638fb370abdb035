package conversation

import (
	"context"
	"time"

	"inkflow_backend/internal/calendar"
	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/payments"
)

// Consumer-side interfaces over the collaborator clients. Declared here so
// tests can stub them without standing up HTTP servers.

type ContactReader interface {
	GetContact(ctx context.Context, contactID string) (*crm.Contact, error)
}

type ContactFieldWriter interface {
	UpdateSystemFields(ctx context.Context, contactID string, fields map[string]any) error
}

type MessageSender interface {
	SendConversationMessage(ctx context.Context, params crm.SendMessageParams) error
}

type CalendarService interface {
	Enabled() bool
	GetAvailableSlots(ctx context.Context, q calendar.SlotQuery) ([]calendar.Slot, error)
	CreateConsultAppointment(ctx context.Context, params calendar.CreateAppointmentParams) (*calendar.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
	CreateMeetingLink(ctx context.Context, appointmentID string) (string, error)
}

type DepositLinkService interface {
	Enabled() bool
	DepositAmountCents() int64
	CreateDepositLinkForContact(ctx context.Context, contactID string) (*payments.DepositLink, error)
}

// HoldScheduler registers the warn/release deadlines for a newly created
// hold with the task queue.
type HoldScheduler interface {
	ScheduleHoldDeadlines(ctx context.Context, contactID string, createdAt time.Time) error
}

// HoldRegistry tracks which contacts currently have active holds, so the
// periodic sweep can enumerate them without scanning the CRM.
type HoldRegistry interface {
	AddActiveHold(ctx context.Context, contactID string) error
	RemoveActiveHold(ctx context.Context, contactID string) error
}
