// Package hold owns the appointment-hold lifecycle: a slot selection opens a
// time-bounded hold, inactivity warns then releases it, and a deposit payment
// confirms it. The CRM's custom fields are the system of record; Redis only
// tracks which contacts currently hold a slot.
package hold

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const activeHoldsKey = "holds:active"

// Registry is the Redis-backed set of contacts with active holds. It exists
// so the periodic sweep can enumerate holds without scanning the CRM.
type Registry struct {
	rdb *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

func (r *Registry) AddActiveHold(ctx context.Context, contactID string) error {
	if err := r.rdb.SAdd(ctx, activeHoldsKey, contactID).Err(); err != nil {
		return fmt.Errorf("add active hold: %w", err)
	}
	return nil
}

func (r *Registry) RemoveActiveHold(ctx context.Context, contactID string) error {
	if err := r.rdb.SRem(ctx, activeHoldsKey, contactID).Err(); err != nil {
		return fmt.Errorf("remove active hold: %w", err)
	}
	return nil
}

// ListActiveHolds returns every contact with a registered hold. The set may
// lag the CRM slightly; the evaluator re-checks the fields before acting.
func (r *Registry) ListActiveHolds(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, activeHoldsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active holds: %w", err)
	}
	return ids, nil
}
