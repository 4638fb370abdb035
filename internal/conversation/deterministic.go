package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkflow_backend/internal/calendar"
	"inkflow_backend/internal/events"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
)

// BuildParams is one routed turn for the deterministic builder.
type BuildParams struct {
	Contact *CanonicalContact
	State   *CanonicalState
	Intents Intents
	Reason  string
	Message string
	Now     time.Time
}

// CanonicalContact is the slice of the CRM contact the builder needs.
type CanonicalContact struct {
	ID        string
	FirstName string
}

// BuildResult is the builder's answer: outbound bubbles, the field updates to
// persist, and a note tag recorded on the turn for operator audit.
type BuildResult struct {
	Bubbles       []string
	FieldUpdates  map[string]any
	InternalNotes string
	HoldCreated   bool
}

// Builder produces fully deterministic replies for routed turns. Money moves
// and calendar writes never pass through the generative responder.
type Builder struct {
	fields    ContactFieldWriter
	calendar  CalendarService
	deposits  DepositLinkService
	deadlines HoldScheduler
	registry  HoldRegistry
	bus       events.Bus
	convCfg   config.ConversationConfig
	holdCfg   config.HoldConfig
	log       *logger.Logger
}

func NewBuilder(
	fields ContactFieldWriter,
	cal CalendarService,
	deposits DepositLinkService,
	deadlines HoldScheduler,
	registry HoldRegistry,
	bus events.Bus,
	convCfg config.ConversationConfig,
	holdCfg config.HoldConfig,
	log *logger.Logger,
) *Builder {
	return &Builder{
		fields:    fields,
		calendar:  cal,
		deposits:  deposits,
		deadlines: deadlines,
		registry:  registry,
		bus:       bus,
		convCfg:   convCfg,
		holdCfg:   holdCfg,
		log:       log,
	}
}

// Build dispatches on the route reason. Every branch returns a complete
// result; errors reaching the caller mean the turn produced no reply.
func (b *Builder) Build(ctx context.Context, params BuildParams) (*BuildResult, error) {
	var (
		result *BuildResult
		err    error
	)
	switch params.Reason {
	case RouteScheduling:
		result, err = b.buildScheduling(ctx, params)
	case RouteSlotSelection:
		result, err = b.buildSlotSelection(ctx, params)
	case RouteDepositQuestion:
		result, err = b.buildDepositWithQuestion(ctx, params)
	case RouteDeposit:
		result, err = b.buildDeposit(ctx, params)
	case RouteReschedule:
		result, err = b.buildReschedule(ctx, params)
	case RouteCancel:
		result, err = b.buildCancel(ctx, params)
	case RouteTranslatorYes:
		result, err = b.buildTranslatorAffirm(ctx, params)
	default:
		return nil, fmt.Errorf("no deterministic branch for route %q", params.Reason)
	}
	if err != nil {
		return nil, err
	}
	result.InternalNotes = "deterministic:" + params.Reason
	return result, nil
}

// buildScheduling answers a fresh "let's book it". The consult path must be
// chosen first; a message-path consult needs no calendar at all.
func (b *Builder) buildScheduling(ctx context.Context, params BuildParams) (*BuildResult, error) {
	state := params.State
	lang := state.Language()

	if state.ConsultationType == "" {
		return &BuildResult{Bubbles: []string{consultPathQuestion(lang)}}, nil
	}
	if state.ConsultationType == ConsultTypeMessage {
		return b.messageConsultKickoff(ctx, params, nil)
	}

	if b.calendar == nil || !b.calendar.Enabled() {
		return &BuildResult{Bubbles: []string{availabilityFallback(lang)}}, nil
	}

	query := ExtractTimePreferences(params.Message, state, params.Now)
	slots, err := b.calendar.GetAvailableSlots(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch available slots: %w", err)
	}
	if len(slots) == 0 {
		return &BuildResult{Bubbles: []string{noSlotsMessage(lang)}}, nil
	}

	max := b.convCfg.GetMaxOfferedSlots()
	if len(slots) > max {
		slots = slots[:max]
	}

	updates := map[string]any{
		FieldLastSentSlots: EncodeSlots(slots),
		FieldTimesSent:     true,
	}
	return &BuildResult{
		Bubbles:      []string{FormatSlotList(slots, lang, max)},
		FieldUpdates: updates,
	}, nil
}

// buildSlotSelection places a hold on the chosen slot: an unconfirmed
// appointment, the hold timestamps, and the deposit link in one turn.
func (b *Builder) buildSlotSelection(ctx context.Context, params BuildParams) (*BuildResult, error) {
	state := params.State
	lang := state.Language()

	offered, ok := RecoverOfferedSlots(state)
	if !ok {
		// Selection language with nothing on the table: restart the offer.
		return b.buildScheduling(ctx, params)
	}

	chosen := MatchSlotSelection(params.Message, offered)
	if chosen == nil {
		return &BuildResult{
			Bubbles: []string{clarifySelection(lang), FormatSlotList(offered, lang, len(offered))},
		}, nil
	}

	fresh, err := b.calendar.GetAvailableSlots(ctx, calendar.SlotQuery{
		From:           params.Now,
		To:             chosen.StartTime.AddDate(0, 0, 7),
		WithTranslator: state.TranslatorNeeded,
	})
	if err != nil {
		return nil, fmt.Errorf("re-verify slot availability: %w", err)
	}
	if !SlotStillOpen(*chosen, fresh) {
		alternatives := NearestAlternatives(*chosen, fresh, b.convCfg.GetMaxOfferedSlots())
		if len(alternatives) == 0 {
			return &BuildResult{Bubbles: []string{noSlotsMessage(lang)}}, nil
		}
		return &BuildResult{
			Bubbles: []string{
				slotGoneMessage(*chosen, lang),
				FormatSlotList(alternatives, lang, len(alternatives)),
			},
			FieldUpdates: map[string]any{FieldLastSentSlots: EncodeSlots(alternatives)},
		}, nil
	}

	appt, err := b.calendar.CreateConsultAppointment(ctx, calendar.CreateAppointmentParams{
		ContactID:  params.Contact.ID,
		CalendarID: chosen.CalendarID,
		Title:      consultTitle(params.Contact.FirstName),
		Status:     calendar.StatusUnconfirmed,
		StartTime:  chosen.StartTime,
		EndTime:    chosen.EndTime,
	})
	if err != nil {
		// The booking failed but the slots are still good. Re-list the same
		// candidates so the lead can just pick again; a silent error would
		// strand their selection.
		b.log.CollaboratorError("calendar", "create consult appointment", err)
		return &BuildResult{
			Bubbles: []string{
				bookingHiccupMessage(lang),
				FormatSlotList(offered, lang, len(offered)),
			},
			FieldUpdates: map[string]any{FieldLastSentSlots: EncodeSlots(offered)},
		}, nil
	}

	updates := map[string]any{
		FieldHoldAppointmentID:  appt.ID,
		FieldHoldCreatedAt:      params.Now.Format(time.RFC3339),
		FieldHoldLastActivityAt: params.Now.Format(time.RFC3339),
		FieldHoldWarningSent:    false,
		FieldAppointmentID:      appt.ID,
		// Keep the held slot as the sole offered slot, so a later release
		// knows which time to remember and re-offer.
		FieldLastSentSlots: EncodeSlots([]calendar.Slot{*chosen}),
	}

	if state.TranslatorNeeded && chosen.TranslatorCalendarID != "" {
		sibling, err := b.calendar.CreateConsultAppointment(ctx, calendar.CreateAppointmentParams{
			ContactID:  params.Contact.ID,
			CalendarID: chosen.TranslatorCalendarID,
			Title:      translatorTitle(params.Contact.FirstName),
			Status:     calendar.StatusUnconfirmed,
			StartTime:  chosen.StartTime,
			EndTime:    chosen.EndTime,
		})
		if err != nil {
			// The lead's hold stands; the interpreter booking is retried by
			// the appointment webhook sync.
			b.log.CollaboratorError("calendar", "create translator appointment", err)
		} else {
			updates[FieldTranslatorAppointmentID] = sibling.ID
			updates[FieldTranslatorConfirmed] = true
		}
	}

	bubbles := []string{heldMessage(*chosen, b.holdCfg.GetHoldReleaseAfter(), lang)}

	if depositBubble, depositUpdates, err := b.DepositLink(ctx, params.Contact.ID, state); err != nil {
		b.log.CollaboratorError("payments", "create deposit link", err)
	} else if depositBubble != "" {
		bubbles = append(bubbles, depositBubble)
		for k, v := range depositUpdates {
			updates[k] = v
		}
	}

	if b.registry != nil {
		if err := b.registry.AddActiveHold(ctx, params.Contact.ID); err != nil {
			b.log.CollaboratorError("redis", "register active hold", err)
		}
	}
	if b.deadlines != nil {
		if err := b.deadlines.ScheduleHoldDeadlines(ctx, params.Contact.ID, params.Now); err != nil {
			b.log.CollaboratorError("scheduler", "schedule hold deadlines", err)
		}
	}
	if b.bus != nil {
		b.bus.Publish(ctx, events.HoldCreated{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     params.Contact.ID,
			AppointmentID: appt.ID,
			SlotStart:     chosen.StartTime,
		})
	}

	return &BuildResult{Bubbles: bubbles, FieldUpdates: updates, HoldCreated: true}, nil
}

// buildDepositWithQuestion handles a multi-intent turn: answer the question
// first, then present the link. Link-first reads as dodging the question.
func (b *Builder) buildDepositWithQuestion(ctx context.Context, params BuildParams) (*BuildResult, error) {
	state := params.State
	lang := state.Language()

	result, err := b.buildDeposit(ctx, params)
	if err != nil {
		return nil, err
	}
	result.Bubbles = append([]string{processAnswer(params.Message, lang)}, result.Bubbles...)
	return result, nil
}

func (b *Builder) buildDeposit(ctx context.Context, params BuildParams) (*BuildResult, error) {
	state := params.State
	lang := state.Language()

	if state.DepositPaid {
		// Paid and asking about the deposit again: acknowledge and move them
		// forward to picking a time instead of dead-ending the turn.
		bubbles := []string{depositAlreadyPaid(lang)}
		updates := map[string]any{}
		if state.AppointmentID == "" {
			if len(state.LastSentSlots) > 0 {
				bubbles = append(bubbles, FormatSlotList(state.LastSentSlots, lang, len(state.LastSentSlots)))
			} else if sched, err := b.buildScheduling(ctx, params); err != nil {
				b.log.CollaboratorError("calendar", "offer slots after paid deposit", err)
			} else {
				bubbles = append(bubbles, sched.Bubbles...)
				for k, v := range sched.FieldUpdates {
					updates[k] = v
				}
			}
		}
		return &BuildResult{Bubbles: bubbles, FieldUpdates: updates}, nil
	}

	bubble, updates, err := b.DepositLink(ctx, params.Contact.ID, state)
	if err != nil {
		return nil, err
	}
	if bubble == "" {
		return &BuildResult{Bubbles: []string{depositUnavailable(lang)}}, nil
	}
	return &BuildResult{Bubbles: []string{bubble}, FieldUpdates: updates}, nil
}

// DepositLink returns the deposit-link bubble and its field updates, reusing
// a previously sent link rather than minting a new one; each link is
// single-use on the provider side. An empty bubble means links are off or
// the deposit is already paid.
func (b *Builder) DepositLink(ctx context.Context, contactID string, state *CanonicalState) (string, map[string]any, error) {
	if state.DepositPaid || b.deposits == nil || !b.deposits.Enabled() {
		return "", nil, nil
	}
	lang := state.Language()
	amount := b.deposits.DepositAmountCents()

	if state.DepositLinkSent && state.DepositLinkURL != "" {
		return depositLinkMessage(state.DepositLinkURL, amount, lang), nil, nil
	}

	link, err := b.deposits.CreateDepositLinkForContact(ctx, contactID)
	if err != nil {
		return "", nil, err
	}
	if b.bus != nil {
		b.bus.Publish(ctx, events.DepositLinkSent{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     contactID,
			PaymentLinkID: link.PaymentLinkID,
			AmountCents:   amount,
		})
	}
	updates := map[string]any{
		FieldDepositLinkSent: true,
		FieldDepositLinkURL:  link.URL,
	}
	return depositLinkMessage(link.URL, amount, lang), updates, nil
}

// buildReschedule releases the current hold and immediately reopens the
// offer with the new time preferences.
func (b *Builder) buildReschedule(ctx context.Context, params BuildParams) (*BuildResult, error) {
	state := params.State

	if !state.HasActiveHold() && state.AppointmentID == "" {
		return b.buildScheduling(ctx, params)
	}

	clearUpdates, err := b.releaseBooking(ctx, params)
	if err != nil {
		return nil, err
	}

	schedResult, err := b.buildScheduling(ctx, params)
	if err != nil {
		return nil, err
	}
	if schedResult.FieldUpdates == nil {
		schedResult.FieldUpdates = map[string]any{}
	}
	for k, v := range clearUpdates {
		if _, set := schedResult.FieldUpdates[k]; !set {
			schedResult.FieldUpdates[k] = v
		}
	}
	schedResult.Bubbles = append([]string{rescheduleAck(state.Language())}, schedResult.Bubbles...)
	return schedResult, nil
}

func (b *Builder) buildCancel(ctx context.Context, params BuildParams) (*BuildResult, error) {
	state := params.State
	lang := state.Language()

	if !state.HasActiveHold() && state.AppointmentID == "" {
		return &BuildResult{Bubbles: []string{cancelNothingHeld(lang)}}, nil
	}

	updates, err := b.releaseBooking(ctx, params)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Bubbles: []string{cancelAck(lang)}, FieldUpdates: updates}, nil
}

// releaseBooking cancels the held appointment (and its interpreter sibling)
// and returns the field updates that clear the hold.
func (b *Builder) releaseBooking(ctx context.Context, params BuildParams) (map[string]any, error) {
	state := params.State

	apptID := state.HoldAppointmentID
	if apptID == "" {
		apptID = state.AppointmentID
	}
	if apptID != "" && b.calendar != nil && b.calendar.Enabled() {
		if err := b.calendar.UpdateAppointmentStatus(ctx, apptID, calendar.StatusCancelled); err != nil {
			return nil, fmt.Errorf("cancel appointment: %w", err)
		}
		if state.TranslatorAppointmentID != "" {
			if err := b.calendar.UpdateAppointmentStatus(ctx, state.TranslatorAppointmentID, calendar.StatusCancelled); err != nil {
				b.log.CollaboratorError("calendar", "cancel translator appointment", err)
			}
		}
	}

	if b.registry != nil {
		if err := b.registry.RemoveActiveHold(ctx, params.Contact.ID); err != nil {
			b.log.CollaboratorError("redis", "remove active hold", err)
		}
	}
	if b.bus != nil && state.HoldAppointmentID != "" {
		b.bus.Publish(ctx, events.HoldReleased{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     params.Contact.ID,
			AppointmentID: state.HoldAppointmentID,
		})
	}

	return map[string]any{
		FieldHoldAppointmentID:       nil,
		FieldHoldCreatedAt:           nil,
		FieldHoldLastActivityAt:      nil,
		FieldHoldWarningSent:         false,
		FieldAppointmentID:           nil,
		FieldTranslatorAppointmentID: nil,
		FieldLastSentSlots:           nil,
	}, nil
}

func (b *Builder) buildTranslatorAffirm(ctx context.Context, params BuildParams) (*BuildResult, error) {
	lang := params.State.Language()
	return &BuildResult{
		Bubbles: []string{translatorConfirmed(lang)},
		FieldUpdates: map[string]any{
			FieldTranslatorNeeded:    true,
			FieldTranslatorConfirmed: true,
		},
	}, nil
}

// messageConsultKickoff handles scheduling intent on the message path: there
// is nothing to book, so the consult starts right away and the deposit
// secures the eventual tattoo session.
func (b *Builder) messageConsultKickoff(ctx context.Context, params BuildParams, extra map[string]any) (*BuildResult, error) {
	state := params.State
	lang := state.Language()

	bubbles := []string{messageConsultIntro(lang)}
	updates := map[string]any{FieldConsultExplained: true}
	for k, v := range extra {
		updates[k] = v
	}

	if depositBubble, depositUpdates, err := b.DepositLink(ctx, params.Contact.ID, state); err != nil {
		b.log.CollaboratorError("payments", "create deposit link", err)
	} else if depositBubble != "" {
		bubbles = append(bubbles, depositBubble)
		for k, v := range depositUpdates {
			updates[k] = v
		}
	}
	return &BuildResult{Bubbles: bubbles, FieldUpdates: updates}, nil
}

// Copy below is intentionally plain: short sentences, no emoji spam, the
// studio's voice. Spanish mirrors the English line for line.

func consultPathQuestion(lang string) string {
	if lang == "es" {
		return "¡Perfecto! Para la consulta tienes dos opciones: la hacemos por mensajes aquí mismo, o por videollamada con el artista. ¿Cuál prefieres?"
	}
	return "Perfect! For your consult you've got two options: we can do it right here over messages, or on a video call with the artist. Which do you prefer?"
}

func availabilityFallback(lang string) string {
	if lang == "es" {
		return "¡Claro! Cuéntame qué días y horarios te funcionan mejor y te confirmo."
	}
	return "Absolutely! Tell me which days and times work best for you and I'll get you confirmed."
}

func noSlotsMessage(lang string) string {
	if lang == "es" {
		return "No tengo horarios abiertos en esas fechas. ¿Te funcionaría otra semana u otro horario?"
	}
	return "I don't have anything open for those dates. Would another week or a different time of day work?"
}

func clarifySelection(lang string) string {
	if lang == "es" {
		return "Solo para confirmar, ¿cuál número te funciona?"
	}
	return "Just to make sure I grab the right one, which number works for you?"
}

func bookingHiccupMessage(lang string) string {
	if lang == "es" {
		return "Tuve un problema al apartar ese horario. ¡Sigue disponible! ¿Me confirmas de nuevo cuál quieres?"
	}
	return "I hit a snag locking that time in. It's still available though! Can you tell me which one you'd like again?"
}

func slotGoneMessage(slot calendar.Slot, lang string) string {
	if lang == "es" {
		return fmt.Sprintf("Uy, ese horario (%s) se acaba de ocupar. Estos son los más cercanos:", slot.DisplayText)
	}
	return fmt.Sprintf("Ah, that time (%s) just got taken. Here are the closest ones I have:", slot.DisplayText)
}

func heldMessage(slot calendar.Slot, holdFor time.Duration, lang string) string {
	minutes := int(holdFor.Minutes())
	if lang == "es" {
		return fmt.Sprintf("¡Listo! Te aparté %s. Te lo guardo unos %d minutos mientras completas el depósito.", slot.DisplayText, minutes)
	}
	return fmt.Sprintf("Done! I've got you down for %s. I'll hold it for about %d minutes while you complete the deposit.", slot.DisplayText, minutes)
}

func depositLinkMessage(url string, amountCents int64, lang string) string {
	amount := formatMoney(amountCents)
	if lang == "es" {
		return fmt.Sprintf("Aquí está tu enlace para el depósito de %s, que se aplica al costo de tu tatuaje: %s", amount, url)
	}
	return fmt.Sprintf("Here's your link for the %s deposit, which goes toward the cost of your tattoo: %s", amount, url)
}

func depositAlreadyPaid(lang string) string {
	if lang == "es" {
		return "¡Ya recibimos tu depósito, estás confirmado! No necesitas pagar nada más por ahora."
	}
	return "We've already got your deposit, you're all confirmed! Nothing else to pay right now."
}

func depositUnavailable(lang string) string {
	if lang == "es" {
		return "Te mando el enlace del depósito en un momento, en cuanto lo tenga listo."
	}
	return "I'll send your deposit link over in just a moment, as soon as I have it ready."
}

func rescheduleAck(lang string) string {
	if lang == "es" {
		return "¡Sin problema! Liberé tu horario anterior."
	}
	return "No problem! I've freed up your previous time."
}

func cancelAck(lang string) string {
	if lang == "es" {
		return "Entendido, cancelé tu cita. Cuando quieras retomarlo, aquí estaré — tu idea merece hacerse realidad."
	}
	return "Got it, I've cancelled your appointment. Whenever you're ready to pick it back up, I'm here — your idea deserves to happen."
}

func cancelNothingHeld(lang string) string {
	if lang == "es" {
		return "No tienes ninguna cita agendada ahora mismo, ¡así que no hay nada que cancelar! ¿Quieres ver horarios?"
	}
	return "You don't have anything booked right now, so there's nothing to cancel! Want me to send over some times?"
}

func translatorConfirmed(lang string) string {
	if lang == "es" {
		return "¡Perfecto! Tendremos un intérprete contigo en la videollamada, sin costo extra."
	}
	return "Perfect! We'll have an interpreter with you on the video call, at no extra cost."
}

func messageConsultIntro(lang string) string {
	if lang == "es" {
		return "¡Genial! Hacemos tu consulta aquí mismo por mensajes. El artista revisa tu idea, te comparte precio y preparamos todo para tu cita."
	}
	return "Great! We'll do your consult right here over messages. The artist reviews your idea, shares pricing, and we get everything ready for your session."
}

func processAnswer(message, lang string) string {
	lower := strings.ToLower(message)
	aboutPrice := strings.Contains(lower, "price") || strings.Contains(lower, "cost") ||
		strings.Contains(lower, "how much") || strings.Contains(lower, "precio") ||
		strings.Contains(lower, "cuánto") || strings.Contains(lower, "cuanto")
	if aboutPrice {
		if lang == "es" {
			return "El precio final lo confirma el artista en la consulta, porque depende del tamaño, detalle y zona. El depósito se descuenta del total."
		}
		return "The artist confirms final pricing at your consult, since it depends on size, detail, and placement. Your deposit comes off the total."
	}
	if lang == "es" {
		return "El proceso es sencillo: consulta con el artista, depósito para asegurar tu cita, y el día de la sesión llegas y creamos tu pieza."
	}
	return "The process is simple: a consult with your artist, a deposit to lock in your session, and on the day you come in and we create your piece."
}

func consultTitle(firstName string) string {
	if firstName == "" {
		return "Tattoo Consult"
	}
	return "Tattoo Consult - " + firstName
}

func translatorTitle(firstName string) string {
	if firstName == "" {
		return "Interpreter - Tattoo Consult"
	}
	return "Interpreter - Tattoo Consult - " + firstName
}

func formatMoney(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
