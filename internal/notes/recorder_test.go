package notes

import (
	"context"
	"strings"
	"testing"
	"time"

	"inkflow_backend/internal/events"
	"inkflow_backend/platform/logger"
)

type fakeNoteWriter struct {
	notes map[string][]string
}

func (f *fakeNoteWriter) CreateContactNote(_ context.Context, contactID, body string) error {
	if f.notes == nil {
		f.notes = map[string][]string{}
	}
	f.notes[contactID] = append(f.notes[contactID], body)
	return nil
}

func newRecorderEnv() (*Recorder, *fakeNoteWriter, events.Bus) {
	writer := &fakeNoteWriter{}
	log := logger.New("test")
	recorder := NewRecorder(writer, log)
	bus := events.NewInMemoryBus(log)
	recorder.Register(bus)
	return recorder, writer, bus
}

func TestRecorder_MirrorsEventsOntoTimeline(t *testing.T) {
	_, writer, bus := newRecorderEnv()
	ctx := context.Background()
	slotStart := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		event events.Event
		want  string
	}{
		{"hold created", events.HoldCreated{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", AppointmentID: "appt-1", SlotStart: slotStart}, "appt-1"},
		{"hold warned", events.HoldWarned{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", AppointmentID: "appt-1"}, "warning"},
		{"hold released", events.HoldReleased{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", AppointmentID: "appt-1"}, "Released"},
		{"hold confirmed", events.HoldConfirmed{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", AppointmentID: "appt-1", OrderID: "order-1"}, "order-1"},
		{"deposit link", events.DepositLinkSent{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", PaymentLinkID: "pl-1", AmountCents: 10000}, "$100.00"},
		{"deposit paid", events.DepositPaid{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", OrderID: "order-1"}, "reconciled"},
		{"stage changed", events.StageChanged{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", From: "INTAKE", To: "DISCOVERY"}, "INTAKE -> DISCOVERY"},
	}

	for _, tc := range cases {
		if err := bus.PublishSync(ctx, tc.event); err != nil {
			t.Fatalf("%s: publish: %v", tc.name, err)
		}
	}

	got := writer.notes["c-1"]
	if len(got) != len(cases) {
		t.Fatalf("expected %d notes, got %d: %v", len(cases), len(got), got)
	}
	for i, tc := range cases {
		if !strings.Contains(got[i], tc.want) {
			t.Errorf("%s: note %q should mention %q", tc.name, got[i], tc.want)
		}
	}
}

func TestRecorder_FirstStageTransitionReadsAsNew(t *testing.T) {
	_, writer, bus := newRecorderEnv()

	event := events.StageChanged{BaseEvent: events.NewBaseEvent(), ContactID: "c-2", From: "", To: "INTAKE"}
	if err := bus.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	notes := writer.notes["c-2"]
	if len(notes) != 1 || !strings.Contains(notes[0], "(new) -> INTAKE") {
		t.Errorf("expected a first-transition note, got %v", notes)
	}
}

func TestRecorder_IgnoresUnrelatedEvents(t *testing.T) {
	recorder, writer, _ := newRecorderEnv()

	event := events.MessageReceived{BaseEvent: events.NewBaseEvent(), ContactID: "c-1", Body: "hi"}
	if err := recorder.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.notes) != 0 {
		t.Errorf("inbound messages are not notes, got %v", writer.notes)
	}
}
