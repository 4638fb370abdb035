package webhook

// MessageWebhookRequest is the CRM's inbound-message webhook payload.
type MessageWebhookRequest struct {
	ContactID string `json:"contactId" validate:"required"`
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
	Channel   string `json:"channel"`
}

// PaymentWebhookRequest is the payment provider's event payload. Only
// completed orders matter here; everything else is acknowledged and dropped.
type PaymentWebhookRequest struct {
	Event   string `json:"event" validate:"required"`
	OrderID string `json:"orderId"`
}

// AppointmentWebhookRequest is the calendar's status-change payload.
type AppointmentWebhookRequest struct {
	ContactID     string `json:"contactId" validate:"required"`
	AppointmentID string `json:"appointmentId" validate:"required"`
	Status        string `json:"status" validate:"required"`
}
