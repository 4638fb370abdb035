package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inkflow_backend/internal/crm"
	"inkflow_backend/platform/logger"
)

const generationKeyPrefix = "conv:generation:"

// GenerationStore tracks a per-contact message generation in Redis. Every
// inbound message bumps the counter; an in-flight reply belonging to an older
// generation stops sending, so a lead who double-texts never gets answers to
// a question they have already moved past.
type GenerationStore struct {
	rdb *redis.Client
}

func NewGenerationStore(rdb *redis.Client) *GenerationStore {
	return &GenerationStore{rdb: rdb}
}

// Bump increments and returns the contact's generation.
func (g *GenerationStore) Bump(ctx context.Context, contactID string) (int64, error) {
	gen, err := g.rdb.Incr(ctx, generationKeyPrefix+contactID).Result()
	if err != nil {
		return 0, fmt.Errorf("bump message generation: %w", err)
	}
	return gen, nil
}

// Current returns the contact's generation; a missing key reads as zero.
func (g *GenerationStore) Current(ctx context.Context, contactID string) (int64, error) {
	gen, err := g.rdb.Get(ctx, generationKeyPrefix+contactID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read message generation: %w", err)
	}
	return gen, nil
}

// BubbleSender delivers a reply as separate message bubbles with a human
// typing cadence between them, re-checking the generation before each bubble.
type BubbleSender struct {
	sender MessageSender
	gens   *GenerationStore
	delay  time.Duration
	log    *logger.Logger
}

func NewBubbleSender(sender MessageSender, gens *GenerationStore, delay time.Duration, log *logger.Logger) *BubbleSender {
	return &BubbleSender{sender: sender, gens: gens, delay: delay, log: log}
}

// Send delivers the bubbles in order and returns how many went out. A bumped
// generation aborts cleanly between bubbles; it is not an error.
func (s *BubbleSender) Send(ctx context.Context, contactID string, generation int64, bubbles []string) (int, error) {
	sent := 0
	for i, body := range bubbles {
		if superseded, err := s.isSuperseded(ctx, contactID, generation); err != nil {
			s.log.CollaboratorError("redis", "check message generation", err)
		} else if superseded {
			s.log.Debug("reply superseded by newer inbound message, aborting remaining bubbles",
				"contact_id", contactID, "sent", sent, "remaining", len(bubbles)-sent)
			return sent, nil
		}

		if err := s.sender.SendConversationMessage(ctx, crm.SendMessageParams{
			ContactID: contactID,
			Body:      body,
		}); err != nil {
			return sent, fmt.Errorf("send bubble %d of %d: %w", i+1, len(bubbles), err)
		}
		sent++

		if i < len(bubbles)-1 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return sent, ctx.Err()
			}
		}
	}
	return sent, nil
}

func (s *BubbleSender) isSuperseded(ctx context.Context, contactID string, generation int64) (bool, error) {
	if s.gens == nil {
		return false, nil
	}
	current, err := s.gens.Current(ctx, contactID)
	if err != nil {
		return false, err
	}
	return current > generation, nil
}
