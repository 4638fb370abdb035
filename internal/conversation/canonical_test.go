package conversation

import (
	"testing"
	"time"
)

func TestBuildState_TruthyVariants(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"yes string", "Yes", true},
		{"true string", "true", true},
		{"TRUE string", "TRUE", true},
		{"no string", "No", false},
		{"empty string", "", false},
		{"garbage", "maybe", false},
		{"number", 1, false},
	}

	for _, tc := range cases {
		state := BuildState(map[string]any{FieldDepositPaid: tc.value})
		if state.DepositPaid != tc.want {
			t.Errorf("%s: DepositPaid = %v, want %v", tc.name, state.DepositPaid, tc.want)
		}
	}
}

func TestBuildState_TimeVariants(t *testing.T) {
	ref := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value any
		want  time.Time
	}{
		{"rfc3339", ref.Format(time.RFC3339), ref},
		{"time value", ref, ref},
		{"epoch seconds", float64(ref.Unix()), ref},
		{"epoch millis", float64(ref.UnixMilli()), ref},
		{"garbage", "not a time", time.Time{}},
		{"empty", "", time.Time{}},
	}

	for _, tc := range cases {
		state := BuildState(map[string]any{FieldHoldCreatedAt: tc.value})
		if !state.HoldCreatedAt.Equal(tc.want) {
			t.Errorf("%s: HoldCreatedAt = %v, want %v", tc.name, state.HoldCreatedAt, tc.want)
		}
	}
}

func TestBuildState_SlotsRoundTrip(t *testing.T) {
	slots := []struct {
		start   time.Time
		display string
	}{
		{time.Date(2026, 3, 16, 14, 0, 0, 0, time.UTC), "Mon Mar 16 at 2:00 PM"},
		{time.Date(2026, 3, 17, 10, 0, 0, 0, time.UTC), "Tue Mar 17 at 10:00 AM"},
	}

	encoded := EncodeSlots(nil)
	if encoded != "" {
		t.Fatalf("encoding no slots should be empty, got %q", encoded)
	}

	state := BuildState(map[string]any{
		FieldLastSentSlots: `[{"startTime":"2026-03-16T14:00:00Z","endTime":"2026-03-16T15:00:00Z","displayText":"Mon Mar 16 at 2:00 PM","calendarId":"cal-1"},{"startTime":"2026-03-17T10:00:00Z","endTime":"2026-03-17T11:00:00Z","displayText":"Tue Mar 17 at 10:00 AM","calendarId":"cal-1"}]`,
	})
	if len(state.LastSentSlots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(state.LastSentSlots))
	}
	for i, s := range state.LastSentSlots {
		if !s.StartTime.Equal(slots[i].start) || s.DisplayText != slots[i].display {
			t.Errorf("slot %d = %v %q, want %v %q", i, s.StartTime, s.DisplayText, slots[i].start, slots[i].display)
		}
	}
}

func TestBuildState_MalformedSlotsDegradeToEmpty(t *testing.T) {
	state := BuildState(map[string]any{
		FieldLastSentSlots:    `{"oops": not json`,
		FieldLastReleasedSlot: `[]`,
	})
	if state.LastSentSlots != nil {
		t.Errorf("malformed slots should project as nil, got %v", state.LastSentSlots)
	}
	if state.LastReleasedSlot != nil {
		t.Errorf("malformed released slot should project as nil, got %v", state.LastReleasedSlot)
	}
}

func TestBuildState_UnknownConsultTypeDropped(t *testing.T) {
	state := BuildState(map[string]any{FieldConsultationType: "telepathy"})
	if state.ConsultationType != "" {
		t.Errorf("unknown consult type should be dropped, got %q", state.ConsultationType)
	}

	state = BuildState(map[string]any{FieldConsultationType: "Message"})
	if state.ConsultationType != ConsultTypeMessage {
		t.Errorf("consult type should normalize case, got %q", state.ConsultationType)
	}
}

func TestCanonicalState_HasActiveHold(t *testing.T) {
	state := BuildState(map[string]any{FieldHoldAppointmentID: "appt-1"})
	if !state.HasActiveHold() {
		t.Fatal("hold with unpaid deposit should be active")
	}

	state = BuildState(map[string]any{
		FieldHoldAppointmentID: "appt-1",
		FieldDepositPaid:       true,
	})
	if state.HasActiveHold() {
		t.Fatal("paid deposit should end the hold")
	}
}

func TestCanonicalState_HasCoreTattooInfo(t *testing.T) {
	cases := []struct {
		name                        string
		description, placement, size string
		want                        bool
	}{
		{"nothing", "", "", "", false},
		{"description only", "a wolf", "", "", false},
		{"placement only", "", "forearm", "", false},
		{"description and placement", "a wolf", "forearm", "", true},
		{"description and size", "a wolf", "", "half sleeve", true},
	}

	for _, tc := range cases {
		state := CanonicalState{
			TattooDescription: tc.description,
			TattooPlacement:   tc.placement,
			TattooSize:        tc.size,
		}
		if got := state.HasCoreTattooInfo(); got != tc.want {
			t.Errorf("%s: HasCoreTattooInfo = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCanonicalState_Language(t *testing.T) {
	if lang := (CanonicalState{PreferredLanguage: "ES"}).Language(); lang != "es" {
		t.Errorf("ES should read as es, got %q", lang)
	}
	if lang := (CanonicalState{PreferredLanguage: "fr"}).Language(); lang != "en" {
		t.Errorf("unsupported language should fall back to en, got %q", lang)
	}
	if lang := (CanonicalState{}).Language(); lang != "en" {
		t.Errorf("empty language should default to en, got %q", lang)
	}
}

func TestBuildState_CaseInsensitiveKeys(t *testing.T) {
	state := BuildState(map[string]any{"Deposit_Paid": "Yes"})
	if !state.DepositPaid {
		t.Fatal("field lookup should be case-insensitive")
	}
}
