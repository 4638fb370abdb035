package conversation

import (
	"context"
	"regexp"

	"inkflow_backend/internal/crm"
	"inkflow_backend/platform/logger"
)

// Consult-path choices. The translator question must be resolved before the
// primary choice: answering it is a prerequisite to a confident pick.
const (
	ChoiceMessage            = "message"
	ChoiceTranslator         = "translator"
	ChoiceTranslatorQuestion = "translator_question"
)

var (
	translatorQuestionPattern = regexp.MustCompile(
		`(?i)\b(why|what('?s| is| for)?|do\s+i\s+need)\b.*\b(translator|interpreter|traductor|int[eé]rprete)\b`)
	videoChoicePattern = regexp.MustCompile(
		`(?i)\b(video\s*(call|chat)?|zoom|facetime|face\s+to\s+face|videollamada|llamada)\b`)
	messageChoicePattern = regexp.MustCompile(
		`(?i)\b(over\s+text|through\s+(messages?|chat)|by\s+(message|text)|just\s+(text|message)|texting|por\s+mensajes?)\b`)
	overridePattern = regexp.MustCompile(`(?i)\b(actually|instead|prefer|rather|mejor)\b`)
)

// DetectConsultChoice returns the consult-path choice expressed by the
// message, or "" when none. The translator question outranks both concrete
// choices.
func DetectConsultChoice(text string) string {
	if text == "" {
		return ""
	}
	if translatorQuestionPattern.MatchString(text) {
		return ChoiceTranslatorQuestion
	}
	if videoChoicePattern.MatchString(text) {
		return ChoiceTranslator
	}
	if messageChoicePattern.MatchString(text) {
		return ChoiceMessage
	}
	return ""
}

// HasOverrideLanguage reports whether the message contains explicit override
// wording; only such wording may flip an already-locked consult path.
func HasOverrideLanguage(text string) bool {
	return overridePattern.MatchString(text)
}

// ApplyChoiceParams carries one consult-path application.
type ApplyChoiceParams struct {
	ContactID      string
	Choice         string
	ExistingChoice string
	Locked         bool
	// Override is true when the message carried explicit override language.
	Override bool
	// ApplyOnly updates state without sending an outbound message; used when
	// the choice is embedded in a multi-intent turn another handler answers.
	ApplyOnly bool
	Language  string
}

// ApplyChoiceResult reports what the handler did.
type ApplyChoiceResult struct {
	Applied bool
	Ignored bool
	// TriggerDepositLink asks the caller to follow up with a deposit link:
	// picking a consult path auto-confirms it and the deposit is next.
	TriggerDepositLink bool
	Bubbles            []string
	FieldUpdates       map[string]any
}

// ConsultPath applies consult-path choices against the CRM contact.
type ConsultPath struct {
	fields ContactFieldWriter
	sender MessageSender
	log    *logger.Logger
}

func NewConsultPath(fields ContactFieldWriter, sender MessageSender, log *logger.Logger) *ConsultPath {
	return &ConsultPath{fields: fields, sender: sender, log: log}
}

// Apply honors or ignores the choice per the lock rules, persists the
// resulting fields, and (unless ApplyOnly) sends the confirmation message.
func (p *ConsultPath) Apply(ctx context.Context, params ApplyChoiceParams) (ApplyChoiceResult, error) {
	var result ApplyChoiceResult

	if params.Choice == "" || params.ContactID == "" {
		result.Ignored = true
		return result, nil
	}

	if params.Choice == ChoiceTranslatorQuestion {
		// Answer the question; the primary choice stays open.
		result.Applied = true
		result.Bubbles = []string{translatorExplainer(params.Language)}
		if !params.ApplyOnly {
			if err := p.send(ctx, params.ContactID, result.Bubbles); err != nil {
				return result, err
			}
		}
		return result, nil
	}

	newType := ConsultTypeMessage
	if params.Choice == ChoiceTranslator {
		newType = ConsultTypeAppointment
	}

	if params.Locked && params.ExistingChoice != "" && params.ExistingChoice != newType && !params.Override {
		// A single ambiguous word must not flip a confirmed path.
		p.log.Debug("consult path change ignored without override language",
			"contact_id", params.ContactID, "existing", params.ExistingChoice, "requested", newType)
		result.Ignored = true
		return result, nil
	}

	updates := map[string]any{
		FieldConsultationType:       newType,
		FieldConsultationTypeLocked: true,
	}
	if params.Choice == ChoiceTranslator {
		updates[FieldTranslatorNeeded] = true
	}
	if err := p.fields.UpdateSystemFields(ctx, params.ContactID, updates); err != nil {
		return result, err
	}

	result.Applied = true
	result.TriggerDepositLink = true
	result.FieldUpdates = updates
	result.Bubbles = []string{consultChoiceConfirmation(params.Choice, params.Language)}

	if !params.ApplyOnly {
		if err := p.send(ctx, params.ContactID, result.Bubbles); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (p *ConsultPath) send(ctx context.Context, contactID string, bubbles []string) error {
	for _, body := range bubbles {
		if err := p.sender.SendConversationMessage(ctx, crm.SendMessageParams{
			ContactID: contactID,
			Body:      body,
		}); err != nil {
			return err
		}
	}
	return nil
}

func translatorExplainer(language string) string {
	if language == "es" {
		return "El intérprete está para que nada se pierda al hablar del diseño — detalles como la zona, el tamaño y el estilo importan mucho. No tiene costo extra para ti."
	}
	return "The interpreter is there so nothing gets lost when we talk through your design — placement, size, and style details matter a lot. There's no extra cost to you."
}

func consultChoiceConfirmation(choice, language string) string {
	if choice == ChoiceTranslator {
		if language == "es" {
			return "¡Perfecto! Hacemos la consulta por videollamada con intérprete. Te paso los horarios disponibles en cuanto quieras."
		}
		return "Perfect — we'll do your consult by video call with an interpreter. I can send over available times whenever you're ready."
	}
	if language == "es" {
		return "¡Listo! Hacemos la consulta por mensajes aquí mismo — sin llamadas."
	}
	return "Done — we'll handle your consult right here over messages, no calls needed."
}
