package conversation

import (
	"context"
	"fmt"
	"time"

	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/events"
	"inkflow_backend/platform/logger"
)

// HoldRefresher resets the hold activity clock when the lead messages. The
// warn/release decisions stay on the scheduled checks; an inbound message is
// pure activity, however late it arrives.
type HoldRefresher interface {
	Refresh(ctx context.Context, contactID string, state CanonicalState, now time.Time) error
}

// StageResolver syncs the pipeline stage after a turn's field updates land.
type StageResolver interface {
	Sync(ctx context.Context, contactID string, state CanonicalState) error
}

// GenerateParams is the generative responder's input for one turn.
type GenerateParams struct {
	Contact          *crm.Contact
	State            *CanonicalState
	Message          string
	ObjectionContext string
}

// GenerateResult is the responder's structured reply.
type GenerateResult struct {
	Bubbles       []string
	FieldUpdates  map[string]any
	InternalNotes string
}

// Responder produces the generative reply for turns the router did not skip.
type Responder interface {
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)
}

// Service orchestrates one conversation turn end to end: project state, run
// the hold check, classify, route, build or generate the reply, persist field
// updates, sync the pipeline stage, and deliver the bubbles.
type Service struct {
	contacts  ContactReader
	fields    ContactFieldWriter
	builder   *Builder
	responder Responder
	holds     HoldRefresher
	consult   *ConsultPath
	stages    StageResolver
	gens      *GenerationStore
	bubbles   *BubbleSender
	bus       events.Bus
	log       *logger.Logger
}

func NewService(
	contacts ContactReader,
	fields ContactFieldWriter,
	builder *Builder,
	responder Responder,
	holds HoldRefresher,
	consult *ConsultPath,
	stages StageResolver,
	gens *GenerationStore,
	bubbles *BubbleSender,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		contacts:  contacts,
		fields:    fields,
		builder:   builder,
		responder: responder,
		holds:     holds,
		consult:   consult,
		stages:    stages,
		gens:      gens,
		bubbles:   bubbles,
		bus:       bus,
		log:       log,
	}
}

// HandleInbound processes one inbound lead message.
func (s *Service) HandleInbound(ctx context.Context, contactID, message string) error {
	log := s.log.WithContactID(contactID)

	generation, err := s.gens.Bump(ctx, contactID)
	if err != nil {
		// Without a generation we can still answer; we just lose the
		// supersede check for this turn.
		log.CollaboratorError("redis", "bump message generation", err)
	}

	contact, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}

	now := time.Now()
	state := BuildState(contact.CustomFields)

	if s.holds != nil && state.HasActiveHold() {
		// The message itself is hold activity. This runs before any routing
		// so a lead who replies after the warning keeps their slot.
		if err := s.holds.Refresh(ctx, contactID, state, now); err != nil {
			log.CollaboratorError("hold", "refresh hold activity", err)
		} else {
			state.HoldLastActivityAt = now
			state.HoldWarningSent = false
		}
	}

	intents := Classify(message, ClassifyContext{
		HasCoreTattooInfo:         state.HasCoreTattooInfo(),
		LatePhase:                 state.IsLatePhase(),
		AwaitingTranslatorConfirm: state.TranslatorNeeded && !state.TranslatorConfirmed,
	})
	decision := Route(intents)

	var (
		replyBubbles []string
		fieldUpdates = map[string]any{}
		notes        string
	)

	consultResult, consultHandled, err := s.applyConsultChoice(ctx, contact, &state, intents, decision, message)
	if err != nil {
		log.CollaboratorError("crm", "apply consult path choice", err)
	}
	mergeUpdates(fieldUpdates, consultResult.FieldUpdates)

	switch {
	case decision.Skip:
		built, err := s.builder.Build(ctx, BuildParams{
			Contact: &CanonicalContact{ID: contact.ID, FirstName: contact.FirstName},
			State:   &state,
			Intents: intents,
			Reason:  decision.Reason,
			Message: message,
			Now:     now,
		})
		if err != nil {
			return fmt.Errorf("deterministic reply for route %s: %w", decision.Reason, err)
		}
		replyBubbles = built.Bubbles
		mergeUpdates(fieldUpdates, built.FieldUpdates)
		notes = built.InternalNotes

	case consultHandled:
		// The consult-path answer is the whole turn. Picking a path confirms
		// the consult, so the deposit link follows immediately.
		replyBubbles = consultResult.Bubbles
		notes = "deterministic:consult_path"
		if consultResult.TriggerDepositLink {
			bubble, linkUpdates, err := s.builder.DepositLink(ctx, contact.ID, &state)
			if err != nil {
				log.CollaboratorError("payments", "deposit link after consult choice", err)
			} else if bubble != "" {
				replyBubbles = append(replyBubbles, bubble)
				mergeUpdates(fieldUpdates, linkUpdates)
			}
		}

	default:
		replyBubbles, notes = s.generate(ctx, contact, &state, intents, message, fieldUpdates)
	}

	if len(fieldUpdates) > 0 {
		if err := s.fields.UpdateSystemFields(ctx, contact.ID, fieldUpdates); err != nil {
			log.CollaboratorError("crm", "persist turn field updates", err)
		}
	}

	if s.stages != nil {
		updated := projectUpdatedState(contact, fieldUpdates)
		if err := s.stages.Sync(ctx, contact.ID, updated); err != nil {
			log.CollaboratorError("pipeline", "sync stage", err)
		}
	}

	sent := 0
	if len(replyBubbles) > 0 {
		sent, err = s.bubbles.Send(ctx, contact.ID, generation, replyBubbles)
		if err != nil {
			return fmt.Errorf("deliver reply: %w", err)
		}
	}

	log.ConversationTurn(contact.ID, decision.Reason, notes, sent)
	if s.bus != nil {
		s.bus.Publish(ctx, events.TurnAnswered{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     contact.ID,
			Route:         decision.Reason,
			InternalNotes: notes,
			Bubbles:       sent,
		})
	}
	return nil
}

// applyConsultChoice applies a consult-path choice carried by this message.
// When another branch owns the reply the choice is applied silently; when the
// choice is the turn's only substance it also provides the reply.
func (s *Service) applyConsultChoice(
	ctx context.Context,
	contact *crm.Contact,
	state *CanonicalState,
	intents Intents,
	decision Decision,
	message string,
) (ApplyChoiceResult, bool, error) {
	if !intents.ConsultPathChoice || s.consult == nil {
		return ApplyChoiceResult{}, false, nil
	}
	choice := DetectConsultChoice(message)
	if choice == "" {
		return ApplyChoiceResult{}, false, nil
	}

	result, err := s.consult.Apply(ctx, ApplyChoiceParams{
		ContactID:      contact.ID,
		Choice:         choice,
		ExistingChoice: state.ConsultationType,
		Locked:         state.ConsultationTypeLocked,
		Override:       HasOverrideLanguage(message),
		ApplyOnly:      true,
		Language:       state.Language(),
	})
	if err != nil {
		return result, false, err
	}
	if result.Applied {
		// Keep the in-memory state consistent for the rest of the turn.
		if choice == ChoiceTranslator {
			state.ConsultationType = ConsultTypeAppointment
			state.TranslatorNeeded = true
		} else if choice == ChoiceMessage {
			state.ConsultationType = ConsultTypeMessage
		}
		if choice != ChoiceTranslatorQuestion {
			state.ConsultationTypeLocked = true
		}
	}
	handled := result.Applied && !decision.Skip
	return result, handled, nil
}

func (s *Service) generate(
	ctx context.Context,
	contact *crm.Contact,
	state *CanonicalState,
	intents Intents,
	message string,
	fieldUpdates map[string]any,
) ([]string, string) {
	if s.responder == nil {
		return []string{fallbackReply(state.Language())}, "generative:disabled"
	}

	objectionContext := ""
	if intents.Objection {
		if obj := DetectObjection(message); obj != nil {
			objectionContext = obj.FormatContext(state.Language())
		}
	}

	result, err := s.responder.Generate(ctx, GenerateParams{
		Contact:          contact,
		State:            state,
		Message:          message,
		ObjectionContext: objectionContext,
	})
	if err != nil {
		s.log.CollaboratorError("responder", "generate reply", err)
		return []string{fallbackReply(state.Language())}, "generative:degraded"
	}

	mergeUpdates(fieldUpdates, result.FieldUpdates)
	notes := result.InternalNotes
	if notes == "" {
		notes = "generative"
	}
	return result.Bubbles, notes
}

// projectUpdatedState overlays this turn's field updates onto the contact's
// raw bag and reprojects, so the stage sync sees the post-turn state.
func projectUpdatedState(contact *crm.Contact, updates map[string]any) CanonicalState {
	merged := make(map[string]any, len(contact.CustomFields)+len(updates))
	for k, v := range contact.CustomFields {
		merged[k] = v
	}
	for k, v := range updates {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return BuildState(merged)
}

func mergeUpdates(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func fallbackReply(lang string) string {
	if lang == "es" {
		return "¡Dame un momento para revisar eso y te respondo enseguida!"
	}
	return "Give me just a moment to check on that and I'll get right back to you!"
}
