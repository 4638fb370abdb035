package calendar

import "time"

// Slot is an offered appointment time. Immutable once generated; selection
// matching compares by StartTime equality.
type Slot struct {
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	DisplayText          string    `json:"displayText"`
	CalendarID           string    `json:"calendarId"`
	Artist               string    `json:"artist"`
	TranslatorCalendarID string    `json:"translatorCalendarId,omitempty"`
	Translator           string    `json:"translator,omitempty"`
}

// Appointment statuses used by this system. The calendar itself is the
// scheduling authority; completed only ever arrives inbound, on the
// appointment webhook.
const (
	StatusUnconfirmed = "unconfirmed"
	StatusConfirmed   = "confirmed"
	StatusCancelled   = "cancelled"
	StatusCompleted   = "completed"
)

// Appointment is a booked (possibly unconfirmed) calendar entry.
type Appointment struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendarId"`
	ContactID  string    `json:"contactId"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	MeetingURL string    `json:"meetingUrl,omitempty"`
}

// CreateAppointmentParams books a consult appointment for a slot.
type CreateAppointmentParams struct {
	ContactID  string    `json:"contactId"`
	CalendarID string    `json:"calendarId"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// SlotQuery filters availability lookups.
type SlotQuery struct {
	// From/To bound the search window. Zero From means "now".
	From time.Time
	To   time.Time
	// Weekday filters to a single weekday when non-nil.
	Weekday *time.Weekday
	// AfterHour/BeforeHour bound the time of day (0 disables the bound).
	AfterHour  int
	BeforeHour int
	// WithTranslator requires slots where a translator calendar has a
	// matching opening.
	WithTranslator bool
}
