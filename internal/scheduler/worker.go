package scheduler

import (
	"context"
	"fmt"
	"time"

	"inkflow_backend/internal/hold"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper *hold.Sweeper
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper *hold.Sweeper, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskHoldDeadline, w.handleHoldDeadline)
	mux.HandleFunc(TaskHoldSweep, w.handleHoldSweep)

	return w, nil
}

func (w *Worker) handleHoldDeadline(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseHoldDeadlinePayload(task)
	if err != nil {
		return err
	}
	if payload.ContactID == "" {
		return nil
	}

	w.log.Debug("hold deadline check", "contact_id", payload.ContactID, "phase", payload.Phase)
	return w.sweeper.EvaluateIfDue(ctx, payload.ContactID, time.Now())
}

func (w *Worker) handleHoldSweep(ctx context.Context, _ *asynq.Task) error {
	return w.sweeper.Sweep(ctx, time.Now())
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
