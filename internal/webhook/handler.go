package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/validator"
)

const paymentEventOrderPaid = "order.paid"

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) Messages(c *gin.Context) {
	var req MessageWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if err := h.svc.HandleInboundMessage(c.Request.Context(), req.ContactID, req.MessageID, req.Body, req.Channel); err != nil {
		if httpkit.HandleError(c, err) {
			return
		}
	}
	httpkit.OK(c, gin.H{"accepted": true})
}

func (h *Handler) Payments(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if req.Event != paymentEventOrderPaid {
		httpkit.OK(c, gin.H{"ignored": true})
		return
	}

	if err := h.svc.HandleOrderPaid(c.Request.Context(), req.OrderID); err != nil {
		if httpkit.HandleError(c, err) {
			return
		}
	}
	httpkit.OK(c, gin.H{"processed": true})
}

func (h *Handler) Appointments(c *gin.Context) {
	var req AppointmentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if err := h.svc.HandleAppointmentChanged(c.Request.Context(), req.ContactID, req.AppointmentID, req.Status); err != nil {
		if httpkit.HandleError(c, err) {
			return
		}
	}
	httpkit.OK(c, gin.H{"processed": true})
}

func (h *Handler) Sweep(c *gin.Context) {
	if err := h.svc.TriggerSweep(c.Request.Context()); err != nil {
		if httpkit.HandleError(c, err) {
			return
		}
	}
	httpkit.OK(c, gin.H{"enqueued": true})
}
