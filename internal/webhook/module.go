package webhook

import (
	apphttp "inkflow_backend/internal/http"
	"inkflow_backend/platform/validator"
)

// Module wires the webhook endpoints into the HTTP server.
type Module struct {
	handler  *Handler
	verifier SignatureVerifier
}

var _ apphttp.Module = (*Module)(nil)

func NewModule(svc *Service, verifier SignatureVerifier, val *validator.Validator) *Module {
	return &Module{
		handler:  NewHandler(svc, val),
		verifier: verifier,
	}
}

func (m *Module) Name() string { return "webhook" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.POST("/messages", m.handler.Messages)
	group.POST("/appointments", m.handler.Appointments)
	group.POST("/sweep", m.handler.Sweep)

	payments := group.Group("/payments")
	if m.verifier != nil {
		payments.Use(VerifySignature(m.verifier))
	}
	payments.POST("", m.handler.Payments)
}
