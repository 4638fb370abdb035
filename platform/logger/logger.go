// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ContactIDKey is the context key for the CRM contact ID
	ContactIDKey contextKey = "contact_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and contact_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if contactID, ok := ctx.Value(ContactIDKey).(string); ok && contactID != "" {
		newLogger = newLogger.WithContactID(contactID)
	}

	return newLogger
}

// WithContactID returns a logger scoped to a CRM contact.
func (l *Logger) WithContactID(contactID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("contact_id", contactID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ConversationTurn logs how an inbound message turn was routed and answered.
func (l *Logger) ConversationTurn(contactID, route, internalNotes string, bubbles int) {
	l.Info("conversation_turn",
		slog.String("contact_id", contactID),
		slog.String("route", route),
		slog.String("internal_notes", internalNotes),
		slog.Int("bubbles", bubbles),
	)
}

// HoldTransition logs a hold lifecycle transition.
func (l *Logger) HoldTransition(contactID, holdID, transition string) {
	l.Info("hold_transition",
		slog.String("contact_id", contactID),
		slog.String("hold_id", holdID),
		slog.String("transition", transition),
	)
}

// StageTransition logs a pipeline stage transition.
func (l *Logger) StageTransition(contactID, from, to string, skipped bool) {
	l.Info("stage_transition",
		slog.String("contact_id", contactID),
		slog.String("from", from),
		slog.String("to", to),
		slog.Bool("skipped", skipped),
	)
}

// CollaboratorError logs a failed call to an external collaborator (CRM,
// payments, calendar). The turn degrades to a fallback, so this is a warning.
func (l *Logger) CollaboratorError(system, operation string, err error) {
	l.Warn("collaborator_error",
		slog.String("system", system),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// WebhookError logs webhook processing errors.
func (l *Logger) WebhookError(source string, err error) {
	l.Error("webhook_error",
		slog.String("source", source),
		slog.String("error", err.Error()),
	)
}
