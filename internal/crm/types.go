package crm

// Contact is the CRM contact record. Custom fields are a schemaless bag; the
// conversation package projects them into a typed canonical state and no other
// package reads them directly.
type Contact struct {
	ID           string         `json:"id"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Phone        string         `json:"phone"`
	Email        string         `json:"email"`
	Tags         []string       `json:"tags"`
	CustomFields map[string]any `json:"customFields"`
}

// SendMessageParams describes an outbound conversation message.
type SendMessageParams struct {
	ContactID string `json:"contactId"`
	Body      string `json:"body"`
	// Channel is a hint from the inbound webhook (e.g. "sms", "instagram");
	// empty means the CRM's default channel for the contact.
	Channel string `json:"channel,omitempty"`
}

// Opportunity is the pipeline view of a contact.
type Opportunity struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
	Stage     string `json:"stage"`
}
