// Package responder is the generative side of the conversation: warm,
// persona-driven replies for every turn the deterministic router did not
// claim. It never books, cancels, or takes payment; it talks.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"inkflow_backend/internal/conversation"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
)

// Responder generates replies through the Gemini API with a strict JSON
// response schema, so the output is machine-splittable into bubbles plus
// field updates.
type Responder struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

func New(ctx context.Context, cfg config.ResponderConfig, log *logger.Logger) (*Responder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGenAIAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Responder{client: client, model: cfg.GetGenAIModel(), log: log}, nil
}

// structuredReply mirrors the response schema.
type structuredReply struct {
	Bubbles       []string          `json:"bubbles"`
	InternalNotes string            `json:"internal_notes"`
	FieldUpdates  map[string]string `json:"field_updates"`
}

// updatableFields is the whitelist of custom fields the model may write.
// Hold, deposit, and appointment fields are deliberately absent: the model
// narrates, it does not transact.
var updatableFields = map[string]bool{
	conversation.FieldTattooDescription:  true,
	conversation.FieldTattooPlacement:    true,
	conversation.FieldTattooSize:         true,
	conversation.FieldTimelinePreference: true,
	conversation.FieldPreferredLanguage:  true,
	conversation.FieldConversationPhase:  true,
	conversation.FieldConsultExplained:   true,
}

var replySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"bubbles": {
			Type:        genai.TypeArray,
			Description: "The reply split into 1-3 short message bubbles.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
		"internal_notes": {
			Type:        genai.TypeString,
			Description: "One line for the studio team about what this turn did.",
		},
		"field_updates": {
			Type:        genai.TypeObject,
			Description: "New facts learned this turn, keyed by custom field name.",
			Properties: map[string]*genai.Schema{
				conversation.FieldTattooDescription:  {Type: genai.TypeString},
				conversation.FieldTattooPlacement:    {Type: genai.TypeString},
				conversation.FieldTattooSize:         {Type: genai.TypeString},
				conversation.FieldTimelinePreference: {Type: genai.TypeString},
				conversation.FieldPreferredLanguage:  {Type: genai.TypeString},
				conversation.FieldConversationPhase:  {Type: genai.TypeString},
				conversation.FieldConsultExplained:   {Type: genai.TypeString},
			},
		},
	},
	Required: []string{"bubbles"},
}

// Generate implements conversation.Responder.
func (r *Responder) Generate(ctx context.Context, params conversation.GenerateParams) (*conversation.GenerateResult, error) {
	temperature := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   replySchema,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: buildTurnPrompt(params)}},
	}}

	result, err := r.client.Models.GenerateContent(ctx, r.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	if result == nil || result.Text() == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var reply structuredReply
	if err := json.Unmarshal([]byte(result.Text()), &reply); err != nil {
		return nil, fmt.Errorf("parse structured reply: %w", err)
	}
	if len(reply.Bubbles) == 0 {
		return nil, fmt.Errorf("structured reply carried no bubbles")
	}

	out := &conversation.GenerateResult{
		Bubbles:       reply.Bubbles,
		InternalNotes: reply.InternalNotes,
	}
	for key, value := range reply.FieldUpdates {
		if value == "" || !updatableFields[key] {
			continue
		}
		if out.FieldUpdates == nil {
			out.FieldUpdates = map[string]any{}
		}
		out.FieldUpdates[key] = value
	}
	return out, nil
}

const systemPrompt = `You are Nina, the front-desk assistant for a custom tattoo studio, texting with a lead.

Voice: warm, confident, casual. Short messages, like a person typing. At most one emoji per reply, often none. Reply in the lead's language.

Your job this turn: keep the conversation moving toward a consult. Learn about their tattoo idea (what, where on the body, roughly how big, when they want it). When they are excited and you have those details, guide them toward booking a consult.

Never: quote exact prices (the artist confirms pricing at the consult), promise a specific time slot, mention payment links, or discuss internal systems.

If an objection briefing is provided, follow it: lead with the reframe, ask at most one diagnostic question, and keep it to two short bubbles.

Record new facts in field_updates using the exact field names from the schema. Set conversation_phase to one of intake, discovery, closing, booking as the conversation progresses.`

func buildTurnPrompt(params conversation.GenerateParams) string {
	var b strings.Builder

	b.WriteString("Lead: ")
	if params.Contact != nil && params.Contact.FirstName != "" {
		b.WriteString(params.Contact.FirstName)
	} else {
		b.WriteString("(name unknown)")
	}
	b.WriteString("\n")

	if state := params.State; state != nil {
		fmt.Fprintf(&b, "Conversation phase: %s\n", orUnknown(state.Phase))
		fmt.Fprintf(&b, "Tattoo idea: %s\n", orUnknown(state.TattooDescription))
		fmt.Fprintf(&b, "Placement: %s\n", orUnknown(state.TattooPlacement))
		fmt.Fprintf(&b, "Size: %s\n", orUnknown(state.TattooSize))
		fmt.Fprintf(&b, "Timeline: %s\n", orUnknown(state.TimelinePreference))
		fmt.Fprintf(&b, "Reply language: %s\n", state.Language())
		if state.HasActiveHold() {
			b.WriteString("Note: the lead has a consult time on hold awaiting their deposit.\n")
		}
		if state.DepositPaid {
			b.WriteString("Note: the lead has already paid their deposit.\n")
		}
	}

	if params.ObjectionContext != "" {
		b.WriteString("\nObjection briefing:\n")
		b.WriteString(params.ObjectionContext)
		b.WriteString("\n")
	}

	b.WriteString("\nTheir message: ")
	b.WriteString(params.Message)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
