// Package conversation implements the turn engine: canonical state
// projection, intent classification, hard-skip routing, deterministic
// response building, and the generation-counted bubble sender.
package conversation

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"inkflow_backend/internal/calendar"
)

// Custom-field keys on the CRM contact record. The field bag is the only
// durable store; these keys are the system of record across restarts.
const (
	FieldHoldAppointmentID       = "hold_appointment_id"
	FieldHoldCreatedAt           = "hold_created_at"
	FieldHoldLastActivityAt      = "hold_last_activity_at"
	FieldHoldWarningSent         = "hold_warning_sent"
	FieldDepositPaid             = "deposit_paid"
	FieldDepositLinkSent         = "deposit_link_sent"
	FieldDepositLinkURL          = "deposit_link_url"
	FieldConsultationType        = "consultation_type"
	FieldConsultationTypeLocked  = "consultation_type_locked"
	FieldTranslatorNeeded        = "translator_needed"
	FieldTranslatorConfirmed     = "translator_confirmed"
	FieldTranslatorAppointmentID = "translator_appointment_id"
	FieldLastSentSlots           = "last_sent_slots"
	FieldLastReleasedSlot        = "last_released_slot"
	FieldConsultExplained        = "consult_explained"
	FieldTimesSent               = "times_sent"
	FieldOpportunityStage        = "opportunity_stage"
	FieldOpportunityID           = "opportunity_id"
	FieldAppointmentID           = "appointment_id"
	FieldTattooDescription       = "tattoo_description"
	FieldTattooPlacement         = "tattoo_placement"
	FieldTattooSize              = "tattoo_size"
	FieldMeetingLinkURL          = "meeting_link_url"
	FieldTimelinePreference      = "timeline_preference"
	FieldPreferredLanguage       = "preferred_language"
	FieldConversationPhase       = "conversation_phase"
)

// Consultation types.
const (
	ConsultTypeMessage     = "message"
	ConsultTypeAppointment = "appointment"
)

// Conversation phases set by the generative responder's field updates.
// Late phases let weak booking affirmatives count as booking intent.
const (
	PhaseIntake    = "intake"
	PhaseDiscovery = "discovery"
	PhaseClosing   = "closing"
	PhaseBooking   = "booking"
)

// ReleasedSlot remembers the most recently released hold's slot so a lead
// asking "is that time still open?" can be matched against it.
type ReleasedSlot struct {
	Display string    `json:"display"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// CanonicalState is the normalized, typed snapshot of a contact's relevant
// custom fields. It is rebuilt from the raw field bag on every turn and never
// incrementally mutated, so staleness cannot compound.
type CanonicalState struct {
	HoldAppointmentID       string
	HoldCreatedAt           time.Time
	HoldLastActivityAt      time.Time
	HoldWarningSent         bool
	DepositPaid             bool
	DepositLinkSent         bool
	DepositLinkURL          string
	ConsultationType        string
	ConsultationTypeLocked  bool
	TranslatorNeeded        bool
	TranslatorConfirmed     bool
	TranslatorAppointmentID string
	LastSentSlots           []calendar.Slot
	LastReleasedSlot        *ReleasedSlot
	ConsultExplained        bool
	TimesSent               bool
	OpportunityStage        string
	OpportunityID           string
	AppointmentID           string
	MeetingLinkURL          string
	TattooDescription       string
	TattooPlacement         string
	TattooSize              string
	TimelinePreference      string
	PreferredLanguage       string
	Phase                   string
}

// HasActiveHold reports whether an unpaid hold exists.
func (s CanonicalState) HasActiveHold() bool {
	return s.HoldAppointmentID != "" && !s.DepositPaid
}

// HasCoreTattooInfo reports whether the lead has recorded enough tattoo
// details (description plus placement or size) for a weak booking affirmative
// to count as booking intent.
func (s CanonicalState) HasCoreTattooInfo() bool {
	return s.TattooDescription != "" && (s.TattooPlacement != "" || s.TattooSize != "")
}

// IsLatePhase reports whether the conversation has reached a phase where
// bare affirmatives plausibly mean "book me".
func (s CanonicalState) IsLatePhase() bool {
	return s.Phase == PhaseClosing || s.Phase == PhaseBooking
}

// Language returns the lead's preferred reply language, defaulting to "en".
func (s CanonicalState) Language() string {
	if strings.EqualFold(s.PreferredLanguage, "es") {
		return "es"
	}
	return "en"
}

// BuildState projects the raw custom-field bag into a CanonicalState. The
// store is schemaless: booleans may arrive as bool, "Yes", or "true"; dates
// as RFC 3339 strings or epoch numbers; lists as serialized JSON. Anything
// unparseable degrades to the zero value, never an error.
func BuildState(fields map[string]any) CanonicalState {
	s := CanonicalState{
		HoldAppointmentID:       fieldString(fields, FieldHoldAppointmentID),
		HoldCreatedAt:           fieldTime(fields, FieldHoldCreatedAt),
		HoldLastActivityAt:      fieldTime(fields, FieldHoldLastActivityAt),
		HoldWarningSent:         fieldBool(fields, FieldHoldWarningSent),
		DepositPaid:             fieldBool(fields, FieldDepositPaid),
		DepositLinkSent:         fieldBool(fields, FieldDepositLinkSent),
		DepositLinkURL:          fieldString(fields, FieldDepositLinkURL),
		ConsultationType:        strings.ToLower(fieldString(fields, FieldConsultationType)),
		ConsultationTypeLocked:  fieldBool(fields, FieldConsultationTypeLocked),
		TranslatorNeeded:        fieldBool(fields, FieldTranslatorNeeded),
		TranslatorConfirmed:     fieldBool(fields, FieldTranslatorConfirmed),
		TranslatorAppointmentID: fieldString(fields, FieldTranslatorAppointmentID),
		ConsultExplained:        fieldBool(fields, FieldConsultExplained),
		TimesSent:               fieldBool(fields, FieldTimesSent),
		OpportunityStage:        fieldString(fields, FieldOpportunityStage),
		OpportunityID:           fieldString(fields, FieldOpportunityID),
		AppointmentID:           fieldString(fields, FieldAppointmentID),
		MeetingLinkURL:          fieldString(fields, FieldMeetingLinkURL),
		TattooDescription:       fieldString(fields, FieldTattooDescription),
		TattooPlacement:         fieldString(fields, FieldTattooPlacement),
		TattooSize:              fieldString(fields, FieldTattooSize),
		TimelinePreference:      fieldString(fields, FieldTimelinePreference),
		PreferredLanguage:       strings.ToLower(fieldString(fields, FieldPreferredLanguage)),
		Phase:                   strings.ToLower(fieldString(fields, FieldConversationPhase)),
	}

	if raw := fieldString(fields, FieldLastSentSlots); raw != "" {
		var slots []calendar.Slot
		if err := json.Unmarshal([]byte(raw), &slots); err == nil {
			s.LastSentSlots = slots
		}
	}
	if raw := fieldString(fields, FieldLastReleasedSlot); raw != "" {
		var released ReleasedSlot
		if err := json.Unmarshal([]byte(raw), &released); err == nil && released.Display != "" {
			s.LastReleasedSlot = &released
		}
	}

	if s.ConsultationType != ConsultTypeMessage && s.ConsultationType != ConsultTypeAppointment {
		s.ConsultationType = ""
	}

	return s
}

// EncodeSlots serializes an offered slot list for the last_sent_slots field.
func EncodeSlots(slots []calendar.Slot) string {
	if len(slots) == 0 {
		return ""
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return ""
	}
	return string(data)
}

// EncodeReleasedSlot serializes the released-slot memo.
func EncodeReleasedSlot(slot ReleasedSlot) string {
	data, err := json.Marshal(slot)
	if err != nil {
		return ""
	}
	return string(data)
}

func fieldString(fields map[string]any, key string) string {
	v, ok := lookupField(fields, key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func fieldBool(fields map[string]any, key string) bool {
	v, ok := lookupField(fields, key)
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		trimmed := strings.TrimSpace(t)
		return strings.EqualFold(trimmed, "yes") || strings.EqualFold(trimmed, "true")
	default:
		return false
	}
}

func fieldTime(fields map[string]any, key string) time.Time {
	v, ok := lookupField(fields, key)
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		return parseTimeString(strings.TrimSpace(t))
	case float64:
		return epochToTime(int64(t))
	default:
		return time.Time{}
	}
}

func parseTimeString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochToTime(epoch)
	}
	return time.Time{}
}

// epochToTime treats values above 1e12 as milliseconds, otherwise seconds.
func epochToTime(epoch int64) time.Time {
	if epoch <= 0 {
		return time.Time{}
	}
	if epoch > 1_000_000_000_000 {
		return time.UnixMilli(epoch)
	}
	return time.Unix(epoch, 0)
}

// lookupField finds a key in the bag tolerating different casing.
func lookupField(fields map[string]any, key string) (any, bool) {
	if fields == nil {
		return nil, false
	}
	if v, ok := fields[key]; ok {
		return v, true
	}
	for k, v := range fields {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
