// Package crm is the client for the external CRM collaborator: contact
// reads/writes against the custom-field bag, conversation messaging, and
// opportunity mutation. The store is eventually consistent and offers no
// transactions; callers must keep every mutation idempotent or narrowly
// scoped (see internal/conversation and internal/hold).
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/phone"

	"golang.org/x/time/rate"
)

type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	http       *http.Client
	writeLimit *rate.Limiter
	log        *logger.Logger
}

func NewClient(cfg config.CRMConfig, log *logger.Logger) *Client {
	perSecond := cfg.GetCRMWriteRatePerSecond()
	if perSecond <= 0 {
		perSecond = 5
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetCRMBaseURL(), "/"),
		apiKey:     cfg.GetCRMAPIKey(),
		locationID: cfg.GetCRMLocationID(),
		http:       &http.Client{Timeout: 15 * time.Second},
		writeLimit: rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
		log:        log,
	}
}

// GetContact fetches a contact including its custom-field bag.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	if contactID == "" {
		return nil, fmt.Errorf("contact id is required")
	}

	var out struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts/"+contactID, nil, &out); err != nil {
		return nil, err
	}

	contact := out.Contact
	contact.Phone = phone.NormalizeE164(contact.Phone)
	if contact.CustomFields == nil {
		contact.CustomFields = map[string]any{}
	}
	return &contact, nil
}

// UpdateSystemFields writes a set of custom fields on the contact.
// Fire-and-forget from the caller's perspective: no read-after-write
// guarantee is assumed. nil values clear the field.
func (c *Client) UpdateSystemFields(ctx context.Context, contactID string, fields map[string]any) error {
	if contactID == "" {
		return fmt.Errorf("contact id is required")
	}
	if len(fields) == 0 {
		return nil
	}

	if err := c.writeLimit.Wait(ctx); err != nil {
		return err
	}

	payload := map[string]any{"customFields": fields}
	return c.do(ctx, http.MethodPut, "/contacts/"+contactID, payload, nil)
}

// SendConversationMessage sends an outbound message on the contact's
// conversation thread.
func (c *Client) SendConversationMessage(ctx context.Context, params SendMessageParams) error {
	if params.ContactID == "" {
		return fmt.Errorf("contact id is required")
	}
	if strings.TrimSpace(params.Body) == "" {
		return nil
	}

	if err := c.writeLimit.Wait(ctx); err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, "/conversations/messages", params, nil)
}

// UpsertOpportunity creates the contact's opportunity at the given stage, or
// returns the existing one untouched. The CRM treats (locationID, contactID)
// as the upsert key.
func (c *Client) UpsertOpportunity(ctx context.Context, contactID, stage string) (*Opportunity, error) {
	if err := c.writeLimit.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"contactId":  contactID,
		"locationId": c.locationID,
		"stage":      stage,
	}
	var out struct {
		Opportunity Opportunity `json:"opportunity"`
	}
	if err := c.do(ctx, http.MethodPost, "/opportunities/upsert", payload, &out); err != nil {
		return nil, err
	}
	return &out.Opportunity, nil
}

// CreateContactNote appends a note to the contact's timeline. Notes are the
// staff-facing audit trail; leads never see them.
func (c *Client) CreateContactNote(ctx context.Context, contactID, body string) error {
	if contactID == "" {
		return fmt.Errorf("contact id is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}

	if err := c.writeLimit.Wait(ctx); err != nil {
		return err
	}

	payload := map[string]any{"body": body}
	return c.do(ctx, http.MethodPost, "/contacts/"+contactID+"/notes", payload, nil)
}

// UpdateOpportunityStage moves an existing opportunity to the given stage.
func (c *Client) UpdateOpportunityStage(ctx context.Context, opportunityID, stage string) error {
	if opportunityID == "" {
		return fmt.Errorf("opportunity id is required")
	}

	if err := c.writeLimit.Wait(ctx); err != nil {
		return err
	}

	payload := map[string]any{"stage": stage}
	return c.do(ctx, http.MethodPut, "/opportunities/"+opportunityID, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal crm payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.locationID != "" {
		req.Header.Set("X-Location-Id", c.locationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("crm %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode crm response: %w", err)
	}
	return nil
}
