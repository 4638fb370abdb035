// Package webhook is the inbound boundary: CRM message webhooks, payment
// confirmations, external appointment changes, and the manual sweep trigger.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inkflow_backend/internal/calendar"
	"inkflow_backend/internal/conversation"
	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/events"
	"inkflow_backend/internal/hold"
	"inkflow_backend/internal/pipeline"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"
)

const (
	dedupeKeyPrefix = "webhook:seen:"
	dedupeTTL       = 24 * time.Hour
)

// ConversationEngine runs one inbound conversation turn.
type ConversationEngine interface {
	HandleInbound(ctx context.Context, contactID, message string) error
}

// PaymentResolver resolves a paid order back to the CRM contact.
type PaymentResolver interface {
	GetContactIDFromOrder(ctx context.Context, orderID string) (string, error)
}

// SweepTrigger enqueues a full hold sweep.
type SweepTrigger interface {
	EnqueueHoldSweep(ctx context.Context) error
}

// StageResolver applies pipeline stage transitions driven by boundary
// events, such as the consult being marked completed on the calendar.
type StageResolver interface {
	TransitionTo(ctx context.Context, contactID string, state conversation.CanonicalState, target pipeline.Stage, opts ...pipeline.TransitionOption) (bool, error)
}

// Service handles the webhook side effects. The conversation turn itself runs
// asynchronously; webhooks acknowledge fast and never block on the model.
type Service struct {
	conversations ConversationEngine
	contacts      conversation.ContactReader
	fields        conversation.ContactFieldWriter
	sender        conversation.MessageSender
	cal           conversation.CalendarService
	payments      PaymentResolver
	holds         *hold.Evaluator
	sweeps        SweepTrigger
	stages        StageResolver
	rdb           *redis.Client
	bus           events.Bus
	log           *logger.Logger
}

func NewService(
	conversations ConversationEngine,
	contacts conversation.ContactReader,
	fields conversation.ContactFieldWriter,
	sender conversation.MessageSender,
	cal conversation.CalendarService,
	payments PaymentResolver,
	holds *hold.Evaluator,
	sweeps SweepTrigger,
	stages StageResolver,
	rdb *redis.Client,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		conversations: conversations,
		contacts:      contacts,
		fields:        fields,
		sender:        sender,
		cal:           cal,
		payments:      payments,
		holds:         holds,
		sweeps:        sweeps,
		stages:        stages,
		rdb:           rdb,
		bus:           bus,
		log:           log,
	}
}

// HandleInboundMessage accepts one lead message and processes the turn in the
// background. Redelivered webhooks are dropped by message id.
func (s *Service) HandleInboundMessage(ctx context.Context, contactID, messageID, body, channel string) error {
	if contactID == "" {
		return apperr.BadRequest("contactId is required")
	}

	if messageID != "" {
		fresh, err := s.rdb.SetNX(ctx, dedupeKeyPrefix+messageID, 1, dedupeTTL).Result()
		if err != nil {
			// Dedupe is best effort: a redis blip must not drop lead messages.
			s.log.CollaboratorError("redis", "webhook dedupe", err)
		} else if !fresh {
			s.log.Debug("duplicate message webhook dropped", "message_id", messageID)
			return nil
		}
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.MessageReceived{
			BaseEvent: events.NewBaseEvent(),
			ContactID: contactID,
			Body:      body,
			Channel:   channel,
		})
	}

	turnCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.conversations.HandleInbound(turnCtx, contactID, body); err != nil {
			s.log.WebhookError("messages", err)
		}
	}()
	return nil
}

// HandleOrderPaid reconciles a completed payment to its contact and confirms
// the hold.
func (s *Service) HandleOrderPaid(ctx context.Context, orderID string) error {
	if orderID == "" {
		return apperr.BadRequest("orderId is required")
	}

	contactID, err := s.payments.GetContactIDFromOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("resolve order %s: %w", orderID, err)
	}
	if contactID == "" {
		// Paid order without our metadata: someone else's payment link.
		s.log.Warn("paid order carries no contact metadata, ignoring", "order_id", orderID)
		return nil
	}

	contact, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact for paid order: %w", err)
	}
	state := conversation.BuildState(contact.CustomFields)

	if state.DepositPaid {
		s.log.Debug("deposit already recorded, duplicate payment webhook", "contact_id", contactID, "order_id", orderID)
		return nil
	}

	if err := s.fields.UpdateSystemFields(ctx, contactID, map[string]any{
		conversation.FieldDepositPaid: true,
	}); err != nil {
		return fmt.Errorf("record deposit paid: %w", err)
	}

	if s.holds != nil {
		if err := s.holds.Confirm(ctx, contactID, state, orderID); err != nil {
			s.log.CollaboratorError("hold", "confirm hold after payment", err)
		}
	}

	if err := s.sender.SendConversationMessage(ctx, crm.SendMessageParams{
		ContactID: contactID,
		Body:      depositThanks(state),
	}); err != nil {
		s.log.CollaboratorError("crm", "send deposit confirmation", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.DepositPaid{
			BaseEvent: events.NewBaseEvent(),
			ContactID: contactID,
			OrderID:   orderID,
		})
	}
	return nil
}

// HandleAppointmentChanged keeps our hold fields and the interpreter sibling
// in step with changes made directly on the calendar.
func (s *Service) HandleAppointmentChanged(ctx context.Context, contactID, appointmentID, status string) error {
	if contactID == "" || appointmentID == "" {
		return apperr.BadRequest("contactId and appointmentId are required")
	}

	contact, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact for appointment change: %w", err)
	}
	state := conversation.BuildState(contact.CustomFields)

	if appointmentID != state.HoldAppointmentID && appointmentID != state.AppointmentID {
		return nil
	}

	switch status {
	case calendar.StatusCancelled:
		// Cancelled on the calendar side (by staff or the lead through the
		// booking page): drop the hold and the interpreter booking with it.
		if state.TranslatorAppointmentID != "" && s.cal != nil && s.cal.Enabled() {
			if err := s.cal.UpdateAppointmentStatus(ctx, state.TranslatorAppointmentID, calendar.StatusCancelled); err != nil {
				s.log.CollaboratorError("calendar", "cancel translator sibling", err)
			}
		}
		if err := s.fields.UpdateSystemFields(ctx, contactID, map[string]any{
			conversation.FieldHoldAppointmentID:       nil,
			conversation.FieldHoldCreatedAt:           nil,
			conversation.FieldHoldLastActivityAt:      nil,
			conversation.FieldHoldWarningSent:         false,
			conversation.FieldAppointmentID:           nil,
			conversation.FieldTranslatorAppointmentID: nil,
		}); err != nil {
			return fmt.Errorf("clear hold after external cancellation: %w", err)
		}

	case calendar.StatusConfirmed:
		if state.TranslatorAppointmentID != "" && s.cal != nil && s.cal.Enabled() {
			if err := s.cal.UpdateAppointmentStatus(ctx, state.TranslatorAppointmentID, calendar.StatusConfirmed); err != nil {
				s.log.CollaboratorError("calendar", "confirm translator sibling", err)
			}
		}

	case calendar.StatusCompleted:
		// The session happened; the pipeline's top rung is earned here, not
		// from any conversation turn.
		if s.stages != nil {
			if _, err := s.stages.TransitionTo(ctx, contactID, state, pipeline.StageCompleted); err != nil {
				s.log.CollaboratorError("pipeline", "mark session completed", err)
			}
		}
	}
	return nil
}

// TriggerSweep enqueues one full hold sweep, for operators.
func (s *Service) TriggerSweep(ctx context.Context) error {
	if s.sweeps == nil {
		return apperr.Internal("sweep scheduling is not configured")
	}
	return s.sweeps.EnqueueHoldSweep(ctx)
}

func depositThanks(state conversation.CanonicalState) string {
	if state.Language() == "es" {
		if state.HoldAppointmentID != "" {
			return "¡Recibimos tu depósito! Tu cita quedó confirmada. ¡Nos vemos pronto!"
		}
		return "¡Recibimos tu depósito! Ya estás en nuestra agenda. Te escribimos pronto con los siguientes pasos."
	}
	if state.HoldAppointmentID != "" {
		return "Got your deposit! Your appointment is officially confirmed. See you soon!"
	}
	return "Got your deposit! You're officially on our books. We'll follow up shortly with next steps."
}
