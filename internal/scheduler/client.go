package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"inkflow_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client  *asynq.Client
	queue   string
	holdCfg config.HoldConfig
}

func NewClient(cfg config.SchedulerConfig, holdCfg config.HoldConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client:  asynq.NewClient(opt),
		queue:   queue,
		holdCfg: holdCfg,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleHoldDeadlines enqueues the warn and release checks for a new hold.
// The periodic sweep remains the backstop if either task is lost.
func (c *Client) ScheduleHoldDeadlines(ctx context.Context, contactID string, createdAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	deadlines := []struct {
		phase string
		runAt time.Time
	}{
		{"warn", createdAt.Add(c.holdCfg.GetHoldWarnAfter())},
		{"release", createdAt.Add(c.holdCfg.GetHoldReleaseAfter())},
	}

	for _, d := range deadlines {
		task, err := NewHoldDeadlineTask(HoldDeadlinePayload{
			ContactID: contactID,
			Phase:     d.phase,
			CheckAt:   d.runAt,
		})
		if err != nil {
			return err
		}
		if _, err := c.client.EnqueueContext(ctx, task, asynq.ProcessAt(d.runAt), asynq.Queue(c.queue)); err != nil {
			return fmt.Errorf("enqueue hold %s deadline: %w", d.phase, err)
		}
	}
	return nil
}

// EnqueueHoldSweep triggers one full sweep, used by the manual sweep webhook.
func (c *Client) EnqueueHoldSweep(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, NewHoldSweepTask(), asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
