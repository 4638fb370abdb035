// Package calendar is the client for the external scheduling authority:
// slot availability, appointment CRUD, and meeting-link creation for video
// consults.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

type Client struct {
	baseURL              string
	apiKey               string
	artistCalendarID     string
	translatorCalendarID string
	http                 *http.Client
	log                  *logger.Logger
}

func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	if !cfg.IsCalendarEnabled() {
		return nil
	}

	return &Client{
		baseURL:              strings.TrimRight(cfg.GetCalendarBaseURL(), "/"),
		apiKey:               cfg.GetCalendarAPIKey(),
		artistCalendarID:     cfg.GetArtistCalendarID(),
		translatorCalendarID: cfg.GetTranslatorCalendarID(),
		http:                 &http.Client{Timeout: 20 * time.Second},
		log:                  log,
	}
}

// Enabled reports whether the calendar collaborator is configured.
func (c *Client) Enabled() bool { return c != nil }

type rawSlot struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Artist string    `json:"artist"`
}

// GetAvailableSlots queries open consult slots matching the query. The artist
// calendar and (when a translator is needed) the translator calendar are
// fetched in parallel; a translator slot only qualifies when its start lines
// up with an artist opening.
func (c *Client) GetAvailableSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	if c == nil {
		return nil, fmt.Errorf("calendar not configured")
	}

	from := q.From
	if from.IsZero() {
		from = time.Now()
	}
	to := q.To
	if to.IsZero() {
		to = from.AddDate(0, 0, 14)
	}

	var artistSlots, translatorSlots []rawSlot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slots, err := c.fetchFreeSlots(gctx, c.artistCalendarID, from, to)
		if err != nil {
			return err
		}
		artistSlots = slots
		return nil
	})
	if q.WithTranslator && c.translatorCalendarID != "" {
		g.Go(func() error {
			slots, err := c.fetchFreeSlots(gctx, c.translatorCalendarID, from, to)
			if err != nil {
				return err
			}
			translatorSlots = slots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	translatorByStart := make(map[time.Time]rawSlot, len(translatorSlots))
	for _, s := range translatorSlots {
		translatorByStart[s.Start.UTC()] = s
	}

	var out []Slot
	for _, s := range artistSlots {
		if !matchesQuery(s.Start, q) {
			continue
		}
		slot := Slot{
			StartTime:   s.Start,
			EndTime:     s.End,
			DisplayText: FormatSlotDisplay(s.Start),
			CalendarID:  c.artistCalendarID,
			Artist:      s.Artist,
		}
		if q.WithTranslator {
			t, ok := translatorByStart[s.Start.UTC()]
			if !ok {
				continue
			}
			slot.TranslatorCalendarID = c.translatorCalendarID
			slot.Translator = t.Artist
		}
		out = append(out, slot)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// CreateConsultAppointment books an appointment; status should be
// StatusUnconfirmed for holds.
func (c *Client) CreateConsultAppointment(ctx context.Context, params CreateAppointmentParams) (*Appointment, error) {
	if c == nil {
		return nil, fmt.Errorf("calendar not configured")
	}

	var out struct {
		Appointment Appointment `json:"appointment"`
	}
	if err := c.do(ctx, http.MethodPost, "/appointments", params, &out); err != nil {
		return nil, err
	}
	return &out.Appointment, nil
}

// UpdateAppointmentStatus sets the appointment status (confirmed/cancelled).
func (c *Client) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	if c == nil {
		return fmt.Errorf("calendar not configured")
	}
	if appointmentID == "" {
		return fmt.Errorf("appointment id is required")
	}

	payload := map[string]any{"status": status}
	return c.do(ctx, http.MethodPut, "/appointments/"+appointmentID+"/status", payload, nil)
}

// CreateMeetingLink provisions a video-conference link for a confirmed
// appointment.
func (c *Client) CreateMeetingLink(ctx context.Context, appointmentID string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("calendar not configured")
	}

	var out struct {
		MeetingURL string `json:"meetingUrl"`
	}
	if err := c.do(ctx, http.MethodPost, "/appointments/"+appointmentID+"/meeting-link", nil, &out); err != nil {
		return "", err
	}
	return out.MeetingURL, nil
}

func (c *Client) fetchFreeSlots(ctx context.Context, calendarID string, from, to time.Time) ([]rawSlot, error) {
	path := fmt.Sprintf("/calendars/%s/free-slots?from=%s&to=%s",
		calendarID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))

	var out struct {
		Slots []rawSlot `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func matchesQuery(start time.Time, q SlotQuery) bool {
	if q.Weekday != nil && start.Weekday() != *q.Weekday {
		return false
	}
	if q.AfterHour > 0 && start.Hour() < q.AfterHour {
		return false
	}
	if q.BeforeHour > 0 && start.Hour() >= q.BeforeHour {
		return false
	}
	return true
}

// FormatSlotDisplay renders a slot start the way it is shown to leads,
// e.g. "Mon Jan 2 at 3:04 PM".
func FormatSlotDisplay(t time.Time) string {
	return t.Format("Mon Jan 2 at 3:04 PM")
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal calendar payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("calendar %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode calendar response: %w", err)
	}
	return nil
}
