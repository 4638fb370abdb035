package webhook

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"inkflow_backend/internal/calendar"
	"inkflow_backend/internal/conversation"
	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/pipeline"
	"inkflow_backend/platform/logger"
)

type fakeEngine struct {
	turns chan string
}

func (f *fakeEngine) HandleInbound(_ context.Context, contactID, message string) error {
	f.turns <- contactID + ":" + message
	return nil
}

type fakeContactReader struct {
	contacts map[string]*crm.Contact
}

func (f *fakeContactReader) GetContact(_ context.Context, contactID string) (*crm.Contact, error) {
	return f.contacts[contactID], nil
}

type fakeFieldWriter struct {
	updates []map[string]any
}

func (f *fakeFieldWriter) UpdateSystemFields(_ context.Context, _ string, fields map[string]any) error {
	f.updates = append(f.updates, fields)
	return nil
}

type fakeSender struct {
	sent []crm.SendMessageParams
}

func (f *fakeSender) SendConversationMessage(_ context.Context, params crm.SendMessageParams) error {
	f.sent = append(f.sent, params)
	return nil
}

type fakeCalendar struct {
	statuses map[string]string
}

func (f *fakeCalendar) Enabled() bool { return true }

func (f *fakeCalendar) GetAvailableSlots(_ context.Context, _ calendar.SlotQuery) ([]calendar.Slot, error) {
	return nil, nil
}

func (f *fakeCalendar) CreateConsultAppointment(_ context.Context, _ calendar.CreateAppointmentParams) (*calendar.Appointment, error) {
	return nil, nil
}

func (f *fakeCalendar) UpdateAppointmentStatus(_ context.Context, appointmentID, status string) error {
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[appointmentID] = status
	return nil
}

func (f *fakeCalendar) CreateMeetingLink(_ context.Context, _ string) (string, error) {
	return "", nil
}

type fakePaymentResolver struct {
	orders map[string]string
}

func (f *fakePaymentResolver) GetContactIDFromOrder(_ context.Context, orderID string) (string, error) {
	return f.orders[orderID], nil
}

type fakeSweepTrigger struct {
	enqueued int
}

func (f *fakeSweepTrigger) EnqueueHoldSweep(_ context.Context) error {
	f.enqueued++
	return nil
}

type fakeStageResolver struct {
	targets []pipeline.Stage
}

func (f *fakeStageResolver) TransitionTo(_ context.Context, _ string, _ conversation.CanonicalState, target pipeline.Stage, _ ...pipeline.TransitionOption) (bool, error) {
	f.targets = append(f.targets, target)
	return true, nil
}

type serviceEnv struct {
	svc      *Service
	engine   *fakeEngine
	contacts *fakeContactReader
	fields   *fakeFieldWriter
	sender   *fakeSender
	cal      *fakeCalendar
	payments *fakePaymentResolver
	sweeps   *fakeSweepTrigger
	stages   *fakeStageResolver
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	env := &serviceEnv{
		engine:   &fakeEngine{turns: make(chan string, 8)},
		contacts: &fakeContactReader{contacts: map[string]*crm.Contact{}},
		fields:   &fakeFieldWriter{},
		sender:   &fakeSender{},
		cal:      &fakeCalendar{},
		payments: &fakePaymentResolver{orders: map[string]string{}},
		sweeps:   &fakeSweepTrigger{},
		stages:   &fakeStageResolver{},
	}
	env.svc = NewService(
		env.engine, env.contacts, env.fields, env.sender, env.cal,
		env.payments, nil, env.sweeps, env.stages, rdb, nil, logger.New("test"),
	)
	return env
}

func waitForTurn(t *testing.T, env *serviceEnv) string {
	t.Helper()
	select {
	case turn := <-env.engine.turns:
		return turn
	case <-time.After(2 * time.Second):
		t.Fatal("conversation turn never ran")
		return ""
	}
}

func TestHandleInboundMessage_RunsTurn(t *testing.T) {
	env := newServiceEnv(t)

	if err := env.svc.HandleInboundMessage(context.Background(), "c-1", "m-1", "hey there", "sms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn := waitForTurn(t, env); turn != "c-1:hey there" {
		t.Errorf("turn = %q", turn)
	}
}

func TestHandleInboundMessage_DropsRedeliveries(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	if err := env.svc.HandleInboundMessage(ctx, "c-1", "m-1", "hey", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForTurn(t, env)

	if err := env.svc.HandleInboundMessage(ctx, "c-1", "m-1", "hey", ""); err != nil {
		t.Fatalf("redelivery should be swallowed, got %v", err)
	}
	select {
	case turn := <-env.engine.turns:
		t.Fatalf("redelivered webhook ran a second turn: %q", turn)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleInboundMessage_MissingMessageIDStillProcesses(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	// Without a message id there is nothing to dedupe on; both go through.
	for i := 0; i < 2; i++ {
		if err := env.svc.HandleInboundMessage(ctx, "c-1", "", "hey", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		waitForTurn(t, env)
	}
}

func TestHandleInboundMessage_RequiresContact(t *testing.T) {
	env := newServiceEnv(t)
	if err := env.svc.HandleInboundMessage(context.Background(), "", "m-1", "hey", ""); err == nil {
		t.Fatal("expected an error for a missing contact id")
	}
}

func TestHandleOrderPaid(t *testing.T) {
	env := newServiceEnv(t)
	env.payments.orders["order-1"] = "c-1"
	env.contacts.contacts["c-1"] = &crm.Contact{
		ID: "c-1",
		CustomFields: map[string]any{
			conversation.FieldHoldAppointmentID: "appt-1",
		},
	}

	if err := env.svc.HandleOrderPaid(context.Background(), "order-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.fields.updates) != 1 || env.fields.updates[0][conversation.FieldDepositPaid] != true {
		t.Errorf("deposit_paid should be written, got %v", env.fields.updates)
	}
	if len(env.sender.sent) != 1 || !strings.Contains(env.sender.sent[0].Body, "confirmed") {
		t.Errorf("lead with a hold should get the confirmation thanks, got %v", env.sender.sent)
	}
}

func TestHandleOrderPaid_DuplicateIsDropped(t *testing.T) {
	env := newServiceEnv(t)
	env.payments.orders["order-1"] = "c-1"
	env.contacts.contacts["c-1"] = &crm.Contact{
		ID:           "c-1",
		CustomFields: map[string]any{conversation.FieldDepositPaid: true},
	}

	if err := env.svc.HandleOrderPaid(context.Background(), "order-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.fields.updates) != 0 || len(env.sender.sent) != 0 {
		t.Error("an already-recorded deposit must not be re-processed")
	}
}

func TestHandleOrderPaid_ForeignOrderIgnored(t *testing.T) {
	env := newServiceEnv(t)
	// Resolver finds no contact metadata on the order.
	if err := env.svc.HandleOrderPaid(context.Background(), "order-x"); err != nil {
		t.Fatalf("foreign orders are ignored, not errors: %v", err)
	}
	if len(env.fields.updates) != 0 {
		t.Error("a foreign order must write nothing")
	}
}

func TestHandleAppointmentChanged_ExternalCancellationClearsHold(t *testing.T) {
	env := newServiceEnv(t)
	env.contacts.contacts["c-1"] = &crm.Contact{
		ID: "c-1",
		CustomFields: map[string]any{
			conversation.FieldHoldAppointmentID:       "appt-1",
			conversation.FieldTranslatorAppointmentID: "appt-2",
		},
	}

	if err := env.svc.HandleAppointmentChanged(context.Background(), "c-1", "appt-1", calendar.StatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.cal.statuses["appt-2"] != calendar.StatusCancelled {
		t.Error("interpreter sibling should be cancelled too")
	}
	if len(env.fields.updates) != 1 || env.fields.updates[0][conversation.FieldHoldAppointmentID] != nil {
		t.Errorf("hold fields should clear, got %v", env.fields.updates)
	}
}

func TestHandleAppointmentChanged_UnknownAppointmentIgnored(t *testing.T) {
	env := newServiceEnv(t)
	env.contacts.contacts["c-1"] = &crm.Contact{
		ID:           "c-1",
		CustomFields: map[string]any{conversation.FieldHoldAppointmentID: "appt-1"},
	}

	if err := env.svc.HandleAppointmentChanged(context.Background(), "c-1", "someone-elses-appt", calendar.StatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.fields.updates) != 0 || len(env.cal.statuses) != 0 {
		t.Error("changes to other appointments must not touch our fields")
	}
}

func TestHandleAppointmentChanged_CompletedMarksPipelineDone(t *testing.T) {
	env := newServiceEnv(t)
	env.contacts.contacts["c-1"] = &crm.Contact{
		ID: "c-1",
		CustomFields: map[string]any{
			conversation.FieldAppointmentID: "appt-1",
			conversation.FieldDepositPaid:   true,
		},
	}

	if err := env.svc.HandleAppointmentChanged(context.Background(), "c-1", "appt-1", calendar.StatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.stages.targets) != 1 || env.stages.targets[0] != pipeline.StageCompleted {
		t.Errorf("a completed consult should move the pipeline to its final stage, got %v", env.stages.targets)
	}
}

func TestTriggerSweep(t *testing.T) {
	env := newServiceEnv(t)
	if err := env.svc.TriggerSweep(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.sweeps.enqueued != 1 {
		t.Errorf("sweep should be enqueued once, got %d", env.sweeps.enqueued)
	}
}
