package hold

import (
	"context"
	"fmt"
	"time"

	"inkflow_backend/internal/calendar"
	"inkflow_backend/internal/conversation"
	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/events"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
)

// Outcome reports what one lifecycle check did.
type Outcome struct {
	Warned   bool
	Released bool
}

// Evaluator applies the hold lifecycle rules to one contact's state. Warn and
// release decisions run on the scheduled checks; inbound lead activity goes
// through Refresh, which always resets the clock no matter how late it is.
type Evaluator struct {
	fields   conversation.ContactFieldWriter
	sender   conversation.MessageSender
	calendar conversation.CalendarService
	registry *Registry
	bus      events.Bus
	cfg      config.HoldConfig
	log      *logger.Logger
}

func NewEvaluator(
	fields conversation.ContactFieldWriter,
	sender conversation.MessageSender,
	cal conversation.CalendarService,
	registry *Registry,
	bus events.Bus,
	cfg config.HoldConfig,
	log *logger.Logger,
) *Evaluator {
	return &Evaluator{
		fields:   fields,
		sender:   sender,
		calendar: cal,
		registry: registry,
		bus:      bus,
		cfg:      cfg,
		log:      log,
	}
}

// Evaluate runs one scheduled lifecycle check. Guards no-op in a fixed
// order: no contact, no hold, deposit already paid, unreadable activity
// timestamp. Past the guards, release takes precedence over warning when
// both deadlines have passed, and the warning fires at most once and never
// touches the activity clock. Below both thresholds the check is a no-op;
// only genuine inbound activity resets the clock, through Refresh.
func (e *Evaluator) Evaluate(ctx context.Context, contactID string, state conversation.CanonicalState, now time.Time) (Outcome, error) {
	var outcome Outcome

	if contactID == "" || state.HoldAppointmentID == "" || state.DepositPaid {
		return outcome, nil
	}
	if state.HoldLastActivityAt.IsZero() {
		// A hold with an unreadable clock is left alone rather than released
		// on bad data; the next clean write repairs it.
		e.log.Warn("hold has no readable activity timestamp, skipping evaluation",
			"contact_id", contactID, "hold_id", state.HoldAppointmentID)
		return outcome, nil
	}

	elapsed := now.Sub(state.HoldLastActivityAt)

	switch {
	case elapsed >= e.cfg.GetHoldReleaseAfter():
		if err := e.release(ctx, contactID, state); err != nil {
			return outcome, err
		}
		outcome.Released = true

	case elapsed >= e.cfg.GetHoldWarnAfter():
		if state.HoldWarningSent {
			return outcome, nil
		}
		if err := e.warn(ctx, contactID, state); err != nil {
			return outcome, err
		}
		outcome.Warned = true

	default:
		// Not due. A background check must never count as lead activity.
	}
	return outcome, nil
}

// Refresh counts an inbound lead message against the hold: the activity
// clock resets to now and the warning re-arms, regardless of how much time
// has passed. A warned lead who replies at minute 15 keeps their hold.
func (e *Evaluator) Refresh(ctx context.Context, contactID string, state conversation.CanonicalState, now time.Time) error {
	if contactID == "" || !state.HasActiveHold() {
		return nil
	}

	updates := map[string]any{
		conversation.FieldHoldLastActivityAt: now.Format(time.RFC3339),
	}
	if state.HoldWarningSent {
		updates[conversation.FieldHoldWarningSent] = false
	}
	if err := e.fields.UpdateSystemFields(ctx, contactID, updates); err != nil {
		return fmt.Errorf("refresh hold activity: %w", err)
	}
	return nil
}

// warn sends the one-time inactivity warning. The activity clock is not
// touched: warning a lead is not lead activity.
func (e *Evaluator) warn(ctx context.Context, contactID string, state conversation.CanonicalState) error {
	if err := e.sender.SendConversationMessage(ctx, crm.SendMessageParams{
		ContactID: contactID,
		Body:      warningMessage(state),
	}); err != nil {
		return fmt.Errorf("send hold warning: %w", err)
	}
	if err := e.fields.UpdateSystemFields(ctx, contactID, map[string]any{
		conversation.FieldHoldWarningSent: true,
	}); err != nil {
		return fmt.Errorf("mark hold warning sent: %w", err)
	}

	e.log.HoldTransition(contactID, state.HoldAppointmentID, "warned")
	if e.bus != nil {
		e.bus.Publish(ctx, events.HoldWarned{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     contactID,
			AppointmentID: state.HoldAppointmentID,
		})
	}
	return nil
}

// release cancels the held appointment (and interpreter sibling), clears the
// hold fields, and tells the lead their time went back on the board. The
// released slot is remembered so "is that time still open?" can be answered.
func (e *Evaluator) release(ctx context.Context, contactID string, state conversation.CanonicalState) error {
	if e.calendar != nil && e.calendar.Enabled() {
		if err := e.calendar.UpdateAppointmentStatus(ctx, state.HoldAppointmentID, calendar.StatusCancelled); err != nil {
			return fmt.Errorf("cancel held appointment: %w", err)
		}
		if state.TranslatorAppointmentID != "" {
			if err := e.calendar.UpdateAppointmentStatus(ctx, state.TranslatorAppointmentID, calendar.StatusCancelled); err != nil {
				e.log.CollaboratorError("calendar", "cancel translator appointment on release", err)
			}
		}
	}

	updates := map[string]any{
		conversation.FieldHoldAppointmentID:       nil,
		conversation.FieldHoldCreatedAt:           nil,
		conversation.FieldHoldLastActivityAt:      nil,
		conversation.FieldHoldWarningSent:         false,
		conversation.FieldAppointmentID:           nil,
		conversation.FieldTranslatorAppointmentID: nil,
		conversation.FieldLastSentSlots:           nil,
	}
	var released *conversation.ReleasedSlot
	if len(state.LastSentSlots) > 0 {
		slot := state.LastSentSlots[0]
		released = &conversation.ReleasedSlot{
			Display: slot.DisplayText,
			Start:   slot.StartTime,
			End:     slot.EndTime,
		}
		updates[conversation.FieldLastReleasedSlot] = conversation.EncodeReleasedSlot(*released)
	}
	if err := e.fields.UpdateSystemFields(ctx, contactID, updates); err != nil {
		return fmt.Errorf("clear hold fields: %w", err)
	}

	if err := e.sender.SendConversationMessage(ctx, crm.SendMessageParams{
		ContactID: contactID,
		Body:      releaseMessage(state, released),
	}); err != nil {
		e.log.CollaboratorError("crm", "send hold release notice", err)
	}

	if e.registry != nil {
		if err := e.registry.RemoveActiveHold(ctx, contactID); err != nil {
			e.log.CollaboratorError("redis", "remove released hold", err)
		}
	}

	e.log.HoldTransition(contactID, state.HoldAppointmentID, "released")
	if e.bus != nil {
		e.bus.Publish(ctx, events.HoldReleased{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     contactID,
			AppointmentID: state.HoldAppointmentID,
		})
	}
	return nil
}

// Confirm settles a hold after the deposit is paid: the appointment flips to
// confirmed and the hold fields are cleared. Video consults also get their
// meeting link here.
func (e *Evaluator) Confirm(ctx context.Context, contactID string, state conversation.CanonicalState, orderID string) error {
	if state.HoldAppointmentID == "" {
		return nil
	}

	if e.calendar != nil && e.calendar.Enabled() {
		if err := e.calendar.UpdateAppointmentStatus(ctx, state.HoldAppointmentID, calendar.StatusConfirmed); err != nil {
			return fmt.Errorf("confirm held appointment: %w", err)
		}
		if state.TranslatorAppointmentID != "" {
			if err := e.calendar.UpdateAppointmentStatus(ctx, state.TranslatorAppointmentID, calendar.StatusConfirmed); err != nil {
				e.log.CollaboratorError("calendar", "confirm translator appointment", err)
			}
		}
	}

	// The appointment id survives on its own field; the hold clock and the
	// offered-slot cache are done.
	if err := e.fields.UpdateSystemFields(ctx, contactID, map[string]any{
		conversation.FieldHoldAppointmentID:  nil,
		conversation.FieldHoldCreatedAt:      nil,
		conversation.FieldHoldLastActivityAt: nil,
		conversation.FieldHoldWarningSent:    false,
		conversation.FieldLastSentSlots:      nil,
	}); err != nil {
		return fmt.Errorf("clear hold fields after confirmation: %w", err)
	}

	if e.calendar != nil && e.calendar.Enabled() && state.ConsultationType == conversation.ConsultTypeAppointment {
		e.provisionMeetingLink(ctx, contactID, state)
	}

	if e.registry != nil {
		if err := e.registry.RemoveActiveHold(ctx, contactID); err != nil {
			e.log.CollaboratorError("redis", "remove confirmed hold", err)
		}
	}

	e.log.HoldTransition(contactID, state.HoldAppointmentID, "confirmed")
	if e.bus != nil {
		e.bus.Publish(ctx, events.HoldConfirmed{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     contactID,
			AppointmentID: state.HoldAppointmentID,
			OrderID:       orderID,
		})
	}
	return nil
}

// provisionMeetingLink attaches a video-conference link to a freshly
// confirmed video consult. Failures are logged, never fatal: the consult is
// already confirmed and the link can be re-sent by hand.
func (e *Evaluator) provisionMeetingLink(ctx context.Context, contactID string, state conversation.CanonicalState) {
	url, err := e.calendar.CreateMeetingLink(ctx, state.HoldAppointmentID)
	if err != nil {
		e.log.CollaboratorError("calendar", "create meeting link", err)
		return
	}
	if url == "" {
		return
	}
	if err := e.fields.UpdateSystemFields(ctx, contactID, map[string]any{
		conversation.FieldMeetingLinkURL: url,
	}); err != nil {
		e.log.CollaboratorError("crm", "store meeting link", err)
	}
	if err := e.sender.SendConversationMessage(ctx, crm.SendMessageParams{
		ContactID: contactID,
		Body:      meetingLinkMessage(state, url),
	}); err != nil {
		e.log.CollaboratorError("crm", "send meeting link", err)
	}
}

func meetingLinkMessage(state conversation.CanonicalState, url string) string {
	if state.Language() == "es" {
		return fmt.Sprintf("Aquí está el enlace de video para tu consulta: %s. ¡Nos vemos ahí!", url)
	}
	return fmt.Sprintf("Here's the video link for your consult: %s. See you there!", url)
}

func warningMessage(state conversation.CanonicalState) string {
	slotText := ""
	if len(state.LastSentSlots) > 0 {
		slotText = state.LastSentSlots[0].DisplayText
	}
	if state.Language() == "es" {
		if state.DepositLinkURL != "" {
			return fmt.Sprintf("¡Sigo guardando tu horario%s! Solo falta el depósito para confirmarlo: %s. Si pasa mucho tiempo tendré que liberarlo.", slotSuffix(slotText), state.DepositLinkURL)
		}
		return fmt.Sprintf("¡Sigo guardando tu horario%s! Solo falta el depósito para confirmarlo. Si pasa mucho tiempo tendré que liberarlo.", slotSuffix(slotText))
	}
	if state.DepositLinkURL != "" {
		return fmt.Sprintf("Still holding your time%s! The deposit is all that's left to lock it in: %s. I can only hold it a little longer before it opens back up.", slotSuffix(slotText), state.DepositLinkURL)
	}
	return fmt.Sprintf("Still holding your time%s! The deposit is all that's left to lock it in. I can only hold it a little longer before it opens back up.", slotSuffix(slotText))
}

func releaseMessage(state conversation.CanonicalState, released *conversation.ReleasedSlot) string {
	slotText := ""
	if released != nil {
		slotText = released.Display
	}
	if state.Language() == "es" {
		return fmt.Sprintf("Tuve que liberar tu horario%s para otros clientes. ¡No pasa nada! Escríbeme cuando quieras y te busco nuevos horarios.", slotSuffix(slotText))
	}
	return fmt.Sprintf("I had to open your time%s back up for other clients. No worries at all! Message me whenever you're ready and I'll find you new times.", slotSuffix(slotText))
}

func slotSuffix(display string) string {
	if display == "" {
		return ""
	}
	return " (" + display + ")"
}
