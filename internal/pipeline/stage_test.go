package pipeline

import (
	"context"
	"testing"

	"inkflow_backend/internal/conversation"
	"inkflow_backend/internal/crm"
	"inkflow_backend/platform/logger"
)

type fakeOpportunityStore struct {
	upserts     []string
	stageWrites map[string]string
	nextOppID   string
}

func (f *fakeOpportunityStore) UpsertOpportunity(_ context.Context, contactID, stage string) (*crm.Opportunity, error) {
	f.upserts = append(f.upserts, contactID+":"+stage)
	id := f.nextOppID
	if id == "" {
		id = "opp-1"
	}
	return &crm.Opportunity{ID: id, ContactID: contactID, Stage: stage}, nil
}

func (f *fakeOpportunityStore) UpdateOpportunityStage(_ context.Context, opportunityID, stage string) error {
	if f.stageWrites == nil {
		f.stageWrites = map[string]string{}
	}
	f.stageWrites[opportunityID] = stage
	return nil
}

type fakeFieldWriter struct {
	updates []map[string]any
}

func (f *fakeFieldWriter) UpdateSystemFields(_ context.Context, _ string, fields map[string]any) error {
	f.updates = append(f.updates, fields)
	return nil
}

func newResolverEnv() (*Resolver, *fakeOpportunityStore, *fakeFieldWriter) {
	opps := &fakeOpportunityStore{}
	fields := &fakeFieldWriter{}
	return NewResolver(opps, fields, nil, logger.New("test")), opps, fields
}

func TestDetermineStage(t *testing.T) {
	cases := []struct {
		name  string
		state conversation.CanonicalState
		want  Stage
	}{
		{"nothing known", conversation.CanonicalState{}, StageIntake},
		{"core tattoo info", conversation.CanonicalState{TattooDescription: "wolf", TattooPlacement: "forearm"}, StageDiscovery},
		{"discovery phase", conversation.CanonicalState{Phase: conversation.PhaseDiscovery}, StageDiscovery},
		{"message consult", conversation.CanonicalState{ConsultationType: conversation.ConsultTypeMessage}, StageConsultMessage},
		{"appointment consult booked", conversation.CanonicalState{ConsultationType: conversation.ConsultTypeAppointment, AppointmentID: "appt-1"}, StageConsultBooked},
		{"appointment consult unbooked", conversation.CanonicalState{ConsultationType: conversation.ConsultTypeAppointment}, StageIntake},
		{"deposit link out", conversation.CanonicalState{DepositLinkSent: true, ConsultationType: conversation.ConsultTypeMessage}, StageDepositPending},
		{"deposit paid", conversation.CanonicalState{DepositPaid: true}, StageQualified},
		{"deposit paid with appointment", conversation.CanonicalState{DepositPaid: true, AppointmentID: "appt-1"}, StageBooked},
	}

	for _, tc := range cases {
		if got := DetermineStage(tc.state); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestTransitionTo_FirstTransitionCreatesOpportunity(t *testing.T) {
	resolver, opps, fields := newResolverEnv()

	applied, err := resolver.TransitionTo(context.Background(), "c-1", conversation.CanonicalState{}, StageDiscovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("expected the transition applied")
	}
	if len(opps.upserts) != 1 || opps.upserts[0] != "c-1:DISCOVERY" {
		t.Errorf("upserts = %v", opps.upserts)
	}
	updates := fields.updates[0]
	if updates[conversation.FieldOpportunityStage] != "DISCOVERY" {
		t.Errorf("stage field = %v", updates[conversation.FieldOpportunityStage])
	}
	if updates[conversation.FieldOpportunityID] != "opp-1" {
		t.Errorf("opportunity id should be recorded, got %v", updates[conversation.FieldOpportunityID])
	}
}

func TestTransitionTo_ExistingOpportunityUpdatesInPlace(t *testing.T) {
	resolver, opps, _ := newResolverEnv()
	state := conversation.CanonicalState{OpportunityID: "opp-7", OpportunityStage: "DISCOVERY"}

	applied, err := resolver.TransitionTo(context.Background(), "c-1", state, StageDepositPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("expected the transition applied")
	}
	if opps.stageWrites["opp-7"] != "DEPOSIT_PENDING" {
		t.Errorf("stage writes = %v", opps.stageWrites)
	}
	if len(opps.upserts) != 0 {
		t.Error("an existing opportunity must not be recreated")
	}
}

func TestTransitionTo_NeverRegresses(t *testing.T) {
	resolver, opps, fields := newResolverEnv()
	state := conversation.CanonicalState{OpportunityID: "opp-7", OpportunityStage: "QUALIFIED"}

	cases := []struct {
		name   string
		target Stage
	}{
		{"downward", StageDiscovery},
		{"sideways by rank", StageQualified},
	}
	for _, tc := range cases {
		applied, err := resolver.TransitionTo(context.Background(), "c-1", state, tc.target)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if applied {
			t.Errorf("%s: move to %s should be skipped", tc.name, tc.target)
		}
	}
	if len(opps.stageWrites) != 0 || len(fields.updates) != 0 {
		t.Error("skipped transitions must write nothing")
	}
}

func TestTransitionTo_ConsultStagesDoNotSwap(t *testing.T) {
	resolver, _, _ := newResolverEnv()
	state := conversation.CanonicalState{OpportunityID: "opp-7", OpportunityStage: "CONSULT_BOOKED"}

	applied, err := resolver.TransitionTo(context.Background(), "c-1", state, StageConsultMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Error("the consult stages share a rank; swapping is a sideways move")
	}
}

func TestTransitionTo_LostIsAbsorbing(t *testing.T) {
	resolver, _, fields := newResolverEnv()
	state := conversation.CanonicalState{OpportunityID: "opp-7", OpportunityStage: "COLD_NURTURE_LOST"}

	applied, err := resolver.TransitionTo(context.Background(), "c-1", state, StageBooked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied || len(fields.updates) != 0 {
		t.Error("automation must not move a lost lead, even upward")
	}
}

func TestTransitionTo_AllowRegressionOverrides(t *testing.T) {
	resolver, opps, _ := newResolverEnv()
	state := conversation.CanonicalState{OpportunityID: "opp-7", OpportunityStage: "QUALIFIED"}

	applied, err := resolver.TransitionTo(context.Background(), "c-1", state, StageDiscovery, AllowRegression())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Fatal("explicit regression should be honored")
	}
	if opps.stageWrites["opp-7"] != "DISCOVERY" {
		t.Errorf("stage writes = %v", opps.stageWrites)
	}

	state.OpportunityStage = "COLD_NURTURE_LOST"
	applied, err = resolver.TransitionTo(context.Background(), "c-2", state, StageDiscovery, AllowRegression())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Error("an explicit move out of lost should be honored")
	}
}

func TestSync_DerivesAndApplies(t *testing.T) {
	resolver, opps, _ := newResolverEnv()
	state := conversation.CanonicalState{
		OpportunityID:    "opp-7",
		OpportunityStage: "DISCOVERY",
		DepositLinkSent:  true,
	}
	if err := resolver.Sync(context.Background(), "c-1", state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opps.stageWrites["opp-7"] != "DEPOSIT_PENDING" {
		t.Errorf("stage writes = %v", opps.stageWrites)
	}
}

func TestTransitionTo_SameStageIsNoOp(t *testing.T) {
	resolver, opps, fields := newResolverEnv()
	state := conversation.CanonicalState{OpportunityID: "opp-7", OpportunityStage: "DISCOVERY"}

	applied, err := resolver.TransitionTo(context.Background(), "c-1", state, StageDiscovery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied || len(opps.stageWrites) != 0 || len(fields.updates) != 0 {
		t.Error("same stage should change nothing")
	}
}
