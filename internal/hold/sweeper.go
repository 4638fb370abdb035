package hold

import (
	"context"
	"fmt"
	"time"

	"inkflow_backend/internal/conversation"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
)

// Sweeper runs the scheduled hold checks: the periodic sweep over every
// registered hold, and the per-hold deadline checks. Only inbound messages
// refresh a hold's clock; the sweeper skips holds that are not yet at the
// warning threshold and otherwise lets Evaluate decide between warn and
// release.
type Sweeper struct {
	contacts  conversation.ContactReader
	registry  *Registry
	evaluator *Evaluator
	cfg       config.HoldConfig
	log       *logger.Logger
}

func NewSweeper(
	contacts conversation.ContactReader,
	registry *Registry,
	evaluator *Evaluator,
	cfg config.HoldConfig,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		contacts:  contacts,
		registry:  registry,
		evaluator: evaluator,
		cfg:       cfg,
		log:       log,
	}
}

// Sweep evaluates every registered hold that is due. Per-contact failures are
// logged and skipped so one bad contact cannot stall the rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	contactIDs, err := s.registry.ListActiveHolds(ctx)
	if err != nil {
		return fmt.Errorf("sweep holds: %w", err)
	}

	for _, contactID := range contactIDs {
		if err := s.EvaluateIfDue(ctx, contactID, now); err != nil {
			s.log.CollaboratorError("hold", "sweep contact "+contactID, err)
		}
	}
	return nil
}

// EvaluateIfDue loads the contact's state and runs the lifecycle check, but
// only once the warning threshold has passed. A hold that no longer exists is
// dropped from the registry.
func (s *Sweeper) EvaluateIfDue(ctx context.Context, contactID string, now time.Time) error {
	contact, err := s.contacts.GetContact(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	state := conversation.BuildState(contact.CustomFields)

	if state.HoldAppointmentID == "" || state.DepositPaid {
		if err := s.registry.RemoveActiveHold(ctx, contactID); err != nil {
			s.log.CollaboratorError("redis", "drop stale hold registration", err)
		}
		return nil
	}
	if state.HoldLastActivityAt.IsZero() {
		return nil
	}
	if now.Sub(state.HoldLastActivityAt) < s.cfg.GetHoldWarnAfter() {
		// Not due yet. Skipping here keeps sweep traffic off holds that
		// are still comfortably inside their window.
		return nil
	}

	_, err = s.evaluator.Evaluate(ctx, contactID, state, now)
	return err
}
