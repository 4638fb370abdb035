package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"inkflow_backend/internal/calendar"
	"inkflow_backend/internal/conversation"
	"inkflow_backend/internal/crm"
	"inkflow_backend/internal/events"
	"inkflow_backend/internal/hold"
	apphttp "inkflow_backend/internal/http"
	"inkflow_backend/internal/http/router"
	"inkflow_backend/internal/notes"
	"inkflow_backend/internal/payments"
	"inkflow_backend/internal/pipeline"
	"inkflow_backend/internal/responder"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/internal/webhook"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := newRedis(ctx, log, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// ========================================================================
	// Collaborator clients
	// ========================================================================

	crmClient := crm.NewClient(cfg, log)
	paymentsClient := payments.NewClient(cfg, log)
	calendarClient := calendar.NewClient(cfg, log)
	if !paymentsClient.Enabled() {
		log.Warn("PAYMENTS_API_KEY not configured; deposit links disabled")
	}
	if !calendarClient.Enabled() {
		log.Warn("CALENDAR_BASE_URL not configured; slot offers disabled")
	}

	schedClient, err := scheduler.NewClient(cfg, cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = schedClient.Close() }()

	var aiResponder conversation.Responder
	if cfg.IsResponderEnabled() {
		r, err := responder.New(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize responder", "error", err)
			panic("failed to initialize responder: " + err.Error())
		}
		aiResponder = r
	} else {
		log.Warn("GENAI_API_KEY not configured; generative replies fall back to canned copy")
	}

	// ========================================================================
	// Domain wiring
	// ========================================================================

	notes.NewRecorder(crmClient, log).Register(eventBus)

	registry := hold.NewRegistry(rdb)
	holdEvaluator := hold.NewEvaluator(crmClient, crmClient, calendarClient, registry, eventBus, cfg, log)
	consultPath := conversation.NewConsultPath(crmClient, crmClient, log)
	stageResolver := pipeline.NewResolver(crmClient, crmClient, eventBus, log)

	builder := conversation.NewBuilder(
		crmClient, calendarClient, paymentsClient,
		schedClient, registry, eventBus, cfg, cfg, log,
	)

	generations := conversation.NewGenerationStore(rdb)
	bubbles := conversation.NewBubbleSender(crmClient, generations, cfg.GetBubbleDelay(), log)

	conversationSvc := conversation.NewService(
		crmClient, crmClient, builder, aiResponder,
		holdEvaluator, consultPath, stageResolver,
		generations, bubbles, eventBus, log,
	)

	webhookSvc := webhook.NewService(
		conversationSvc, crmClient, crmClient, crmClient,
		calendarClient, paymentsClient, holdEvaluator,
		schedClient, stageResolver, rdb, eventBus, log,
	)

	var verifier webhook.SignatureVerifier
	if paymentsClient.Enabled() {
		verifier = paymentsClient
	}
	webhookModule := webhook.NewModule(webhookSvc, verifier, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   redisHealth{rdb},
		EventBus: eventBus,
		Modules: []apphttp.Module{
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// redisHealth adapts the redis client to the readiness check.
type redisHealth struct {
	rdb *redis.Client
}

func (h redisHealth) Ping(ctx context.Context) error {
	return h.rdb.Ping(ctx).Err()
}

func newRedis(ctx context.Context, log *logger.Logger, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	}); err != nil {
		return nil, err
	}
	return rdb, nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
