// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// CRMConfig provides settings for the CRM collaborator client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAPIKey() string
	GetCRMLocationID() string
	GetCRMWriteRatePerSecond() float64
}

// PaymentsConfig provides settings for the deposit-link provider.
type PaymentsConfig interface {
	GetPaymentsBaseURL() string
	GetPaymentsAPIKey() string
	GetPaymentsWebhookSecret() string
	GetDepositAmountCents() int64
	GetDepositDescription() string
	IsPaymentsEnabled() bool
	IsPaymentsSandbox() bool
}

// CalendarConfig provides settings for the calendar/video collaborator.
type CalendarConfig interface {
	GetCalendarBaseURL() string
	GetCalendarAPIKey() string
	GetArtistCalendarID() string
	GetTranslatorCalendarID() string
	IsCalendarEnabled() bool
}

// ResponderConfig provides settings for the generative responder.
type ResponderConfig interface {
	GetGenAIAPIKey() string
	GetGenAIModel() string
	IsResponderEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetHoldSweepInterval() time.Duration
}

// HoldConfig provides the hold lifecycle deadlines.
type HoldConfig interface {
	GetHoldWarnAfter() time.Duration
	GetHoldReleaseAfter() time.Duration
}

// ConversationConfig provides settings for the conversation engine.
type ConversationConfig interface {
	GetBubbleDelay() time.Duration
	GetMaxOfferedSlots() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	CORSAllowAll          bool
	CORSOrigins           []string
	CRMBaseURL            string
	CRMAPIKey             string
	CRMLocationID         string
	CRMWriteRatePerSecond float64
	PaymentsBaseURL       string
	PaymentsAPIKey        string
	PaymentsWebhookSecret string
	PaymentsSandbox       bool
	DepositAmountCents    int64
	DepositDescription    string
	CalendarBaseURL       string
	CalendarAPIKey        string
	ArtistCalendarID      string
	TranslatorCalendarID  string
	GenAIAPIKey           string
	GenAIModel            string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	HoldSweepInterval     time.Duration
	HoldWarnAfter         time.Duration
	HoldReleaseAfter      time.Duration
	BubbleDelay           time.Duration
	MaxOfferedSlots       int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string             { return c.CRMBaseURL }
func (c *Config) GetCRMAPIKey() string              { return c.CRMAPIKey }
func (c *Config) GetCRMLocationID() string          { return c.CRMLocationID }
func (c *Config) GetCRMWriteRatePerSecond() float64 { return c.CRMWriteRatePerSecond }

// PaymentsConfig implementation
func (c *Config) GetPaymentsBaseURL() string       { return c.PaymentsBaseURL }
func (c *Config) GetPaymentsAPIKey() string        { return c.PaymentsAPIKey }
func (c *Config) GetPaymentsWebhookSecret() string { return c.PaymentsWebhookSecret }
func (c *Config) GetDepositAmountCents() int64     { return c.DepositAmountCents }
func (c *Config) GetDepositDescription() string    { return c.DepositDescription }
func (c *Config) IsPaymentsEnabled() bool          { return c.PaymentsAPIKey != "" }
func (c *Config) IsPaymentsSandbox() bool          { return c.PaymentsSandbox }

// CalendarConfig implementation
func (c *Config) GetCalendarBaseURL() string      { return c.CalendarBaseURL }
func (c *Config) GetCalendarAPIKey() string       { return c.CalendarAPIKey }
func (c *Config) GetArtistCalendarID() string     { return c.ArtistCalendarID }
func (c *Config) GetTranslatorCalendarID() string { return c.TranslatorCalendarID }
func (c *Config) IsCalendarEnabled() bool         { return c.CalendarBaseURL != "" }

// ResponderConfig implementation
func (c *Config) GetGenAIAPIKey() string   { return c.GenAIAPIKey }
func (c *Config) GetGenAIModel() string    { return c.GenAIModel }
func (c *Config) IsResponderEnabled() bool { return c.GenAIAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetHoldSweepInterval() time.Duration { return c.HoldSweepInterval }

// HoldConfig implementation
func (c *Config) GetHoldWarnAfter() time.Duration    { return c.HoldWarnAfter }
func (c *Config) GetHoldReleaseAfter() time.Duration { return c.HoldReleaseAfter }

// ConversationConfig implementation
func (c *Config) GetBubbleDelay() time.Duration { return c.BubbleDelay }
func (c *Config) GetMaxOfferedSlots() int       { return c.MaxOfferedSlots }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CRMBaseURL:            getEnv("CRM_BASE_URL", ""),
		CRMAPIKey:             getEnv("CRM_API_KEY", ""),
		CRMLocationID:         getEnv("CRM_LOCATION_ID", ""),
		CRMWriteRatePerSecond: mustFloat(getEnv("CRM_WRITE_RATE_PER_SECOND", "5")),
		PaymentsBaseURL:       getEnv("PAYMENTS_BASE_URL", ""),
		PaymentsAPIKey:        getEnv("PAYMENTS_API_KEY", ""),
		PaymentsWebhookSecret: getEnv("PAYMENTS_WEBHOOK_SECRET", ""),
		PaymentsSandbox:       strings.EqualFold(getEnv("PAYMENTS_SANDBOX", "false"), "true"),
		DepositAmountCents:    mustInt64(getEnv("DEPOSIT_AMOUNT_CENTS", "10000")),
		DepositDescription:    getEnv("DEPOSIT_DESCRIPTION", "Tattoo consult deposit"),
		CalendarBaseURL:       getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIKey:        getEnv("CALENDAR_API_KEY", ""),
		ArtistCalendarID:      getEnv("ARTIST_CALENDAR_ID", ""),
		TranslatorCalendarID:  getEnv("TRANSLATOR_CALENDAR_ID", ""),
		GenAIAPIKey:           getEnv("GENAI_API_KEY", ""),
		GenAIModel:            getEnv("GENAI_MODEL", "gemini-2.0-flash"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		HoldSweepInterval:     mustDuration(getEnv("HOLD_SWEEP_INTERVAL", "5m")),
		HoldWarnAfter:         mustDuration(getEnv("HOLD_WARN_AFTER", "10m")),
		HoldReleaseAfter:      mustDuration(getEnv("HOLD_RELEASE_AFTER", "20m")),
		BubbleDelay:           mustDuration(getEnv("BUBBLE_DELAY", "1200ms")),
		MaxOfferedSlots:       int(mustInt64(getEnv("MAX_OFFERED_SLOTS", "4"))),
	}

	if cfg.CRMBaseURL == "" || cfg.CRMAPIKey == "" {
		return nil, fmt.Errorf("CRM_BASE_URL and CRM_API_KEY are required")
	}
	if cfg.HoldWarnAfter <= 0 || cfg.HoldReleaseAfter <= cfg.HoldWarnAfter {
		return nil, fmt.Errorf("HOLD_RELEASE_AFTER must be greater than HOLD_WARN_AFTER")
	}
	if cfg.PaymentsAPIKey != "" && cfg.PaymentsWebhookSecret == "" && !cfg.PaymentsSandbox {
		return nil, fmt.Errorf("PAYMENTS_WEBHOOK_SECRET is required outside sandbox mode")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
