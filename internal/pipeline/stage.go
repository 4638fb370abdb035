// Package pipeline keeps the CRM opportunity stage in step with what the
// conversation has actually established. Stage movement is monotonic: a lead
// who has paid a deposit never slides back to intake because one message
// parsed oddly.
package pipeline

import (
	"context"
	"fmt"

	"inkflow_backend/internal/conversation"
	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/events"
	"inkflow_backend/platform/logger"
)

// Stage is a named rung on the sales pipeline.
type Stage string

const (
	StageIntake         Stage = "INTAKE"
	StageDiscovery      Stage = "DISCOVERY"
	StageConsultMessage Stage = "CONSULT_MESSAGE"
	StageConsultBooked  Stage = "CONSULT_BOOKED"
	StageDepositPending Stage = "DEPOSIT_PENDING"
	StageQualified      Stage = "QUALIFIED"
	StageBooked         Stage = "BOOKED"
	StageCompleted      Stage = "COMPLETED"

	// StageColdNurtureLost is absorbing: automation never moves a lead out
	// of it. Only a human (or an explicit regression) can.
	StageColdNurtureLost Stage = "COLD_NURTURE_LOST"
)

// stageRanks orders the ladder. The two consult stages share a rank: which
// one applies is a path distinction, not progress.
var stageRanks = map[Stage]int{
	StageIntake:         1,
	StageDiscovery:      2,
	StageConsultMessage: 3,
	StageConsultBooked:  3,
	StageDepositPending: 4,
	StageQualified:      5,
	StageBooked:         6,
	StageCompleted:      7,
}

// Rank returns the stage's ladder position; unknown stages rank 0 so any
// known stage outranks them.
func Rank(s Stage) int { return stageRanks[s] }

// DetermineStage derives the stage the state has earned. Checks run from the
// top of the ladder down; the first match wins.
func DetermineStage(state conversation.CanonicalState) Stage {
	switch {
	case state.DepositPaid && state.AppointmentID != "":
		return StageBooked
	case state.DepositPaid:
		return StageQualified
	case state.DepositLinkSent:
		return StageDepositPending
	case state.ConsultationType == conversation.ConsultTypeAppointment && state.AppointmentID != "":
		return StageConsultBooked
	case state.ConsultationType == conversation.ConsultTypeMessage:
		return StageConsultMessage
	case state.HasCoreTattooInfo() || state.Phase == conversation.PhaseDiscovery || state.IsLatePhase():
		return StageDiscovery
	default:
		return StageIntake
	}
}

// OpportunityStore is the slice of the CRM the resolver writes through.
type OpportunityStore interface {
	UpsertOpportunity(ctx context.Context, contactID, stage string) (*crm.Opportunity, error)
	UpdateOpportunityStage(ctx context.Context, opportunityID, stage string) error
}

// TransitionOption tweaks one transition.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	allowRegression bool
}

// AllowRegression permits a downward move; used by operator-driven paths,
// never by the per-turn sync.
func AllowRegression() TransitionOption {
	return func(o *transitionOptions) { o.allowRegression = true }
}

// Resolver applies stage transitions to the CRM opportunity.
type Resolver struct {
	opps   OpportunityStore
	fields conversation.ContactFieldWriter
	bus    events.Bus
	log    *logger.Logger
}

func NewResolver(opps OpportunityStore, fields conversation.ContactFieldWriter, bus events.Bus, log *logger.Logger) *Resolver {
	return &Resolver{opps: opps, fields: fields, bus: bus, log: log}
}

// Sync moves the opportunity to the stage the state has earned, if that is
// an upward move.
func (r *Resolver) Sync(ctx context.Context, contactID string, state conversation.CanonicalState) error {
	_, err := r.TransitionTo(ctx, contactID, state, DetermineStage(state))
	return err
}

// TransitionTo attempts a transition and reports whether it was applied.
// Downward or sideways moves are skipped (not errors) unless AllowRegression
// is given; the lost stage is absorbing under the same rule.
func (r *Resolver) TransitionTo(ctx context.Context, contactID string, state conversation.CanonicalState, target Stage, opts ...TransitionOption) (bool, error) {
	var options transitionOptions
	for _, opt := range opts {
		opt(&options)
	}

	current := Stage(state.OpportunityStage)
	if current == target {
		return false, nil
	}
	if !options.allowRegression {
		if current == StageColdNurtureLost {
			r.log.StageTransition(contactID, string(current), string(target), true)
			return false, nil
		}
		if current != "" && Rank(target) <= Rank(current) {
			r.log.StageTransition(contactID, string(current), string(target), true)
			return false, nil
		}
	}

	updates := map[string]any{conversation.FieldOpportunityStage: string(target)}
	if state.OpportunityID != "" {
		if err := r.opps.UpdateOpportunityStage(ctx, state.OpportunityID, string(target)); err != nil {
			return false, fmt.Errorf("update opportunity stage: %w", err)
		}
	} else {
		opp, err := r.opps.UpsertOpportunity(ctx, contactID, string(target))
		if err != nil {
			return false, fmt.Errorf("create opportunity: %w", err)
		}
		updates[conversation.FieldOpportunityID] = opp.ID
	}

	if err := r.fields.UpdateSystemFields(ctx, contactID, updates); err != nil {
		return false, fmt.Errorf("record opportunity stage: %w", err)
	}

	r.log.StageTransition(contactID, string(current), string(target), false)
	if r.bus != nil {
		r.bus.Publish(ctx, events.StageChanged{
			BaseEvent: events.NewBaseEvent(),
			ContactID: contactID,
			From:      string(current),
			To:        string(target),
		})
	}
	return true, nil
}
