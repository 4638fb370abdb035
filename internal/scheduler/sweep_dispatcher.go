package scheduler

import (
	"context"
	"time"

	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
)

// SweepDispatcher enqueues the periodic hold sweep. It only produces tasks;
// the worker executes them, so multiple dispatcher replicas at worst enqueue
// duplicate sweeps, which the evaluator's guards absorb.
type SweepDispatcher struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewSweepDispatcher(client *Client, cfg config.SchedulerConfig, log *logger.Logger) *SweepDispatcher {
	interval := cfg.GetHoldSweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepDispatcher{client: client, interval: interval, log: log}
}

func (d *SweepDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.client.EnqueueHoldSweep(ctx); err != nil {
				d.log.CollaboratorError("asynq", "enqueue hold sweep", err)
			}
		}
	}
}
