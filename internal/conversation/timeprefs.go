package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"inkflow_backend/internal/calendar"
)

var (
	monthDayPattern = regexp.MustCompile(
		`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	weekOfPattern   = regexp.MustCompile(`(?i)\bweek\s+of\b`)
	nextWeekPattern = regexp.MustCompile(`(?i)\bnext\s+week\b`)
	thisWeekPattern = regexp.MustCompile(`(?i)\bthis\s+week\b`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)\b`)
	morningPattern  = regexp.MustCompile(`(?i)\b(morning|ma[ñn]ana\b.*\btemprano|before\s+noon|am\b)`)
	afternoonWord   = regexp.MustCompile(`(?i)\b(afternoon|tarde)\b`)
	eveningPattern  = regexp.MustCompile(`(?i)\b(evening|night|noche|after\s+work)\b`)
	afterHourExpr   = regexp.MustCompile(`(?i)\bafter\s+(\d{1,2})\s*(am|pm)?\b`)
	beforeHourExpr  = regexp.MustCompile(`(?i)\bbefore\s+(\d{1,2})\s*(am|pm)?\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdaysByName = map[string]time.Weekday{
	"monday": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thursday": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
	"sunday": time.Sunday, "domingo": time.Sunday,
}

// ExtractTimePreferences narrows a slot query using date and time-of-day
// language in the message. When the message carries nothing usable it falls
// back to the stored timeline preference, and finally to a two-week window
// from now. The returned query always has From and To set.
func ExtractTimePreferences(text string, state *CanonicalState, now time.Time) calendar.SlotQuery {
	q, matched := parseTimeLanguage(text, now)
	if !matched && state != nil && state.TimelinePreference != "" {
		q, _ = parseTimeLanguage(state.TimelinePreference, now)
	}
	if q.From.IsZero() {
		q.From = now
	}
	if q.To.IsZero() {
		q.To = q.From.AddDate(0, 0, 14)
	}
	if state != nil {
		q.WithTranslator = state.TranslatorNeeded
	}
	return q
}

func parseTimeLanguage(text string, now time.Time) (calendar.SlotQuery, bool) {
	var q calendar.SlotQuery
	matched := false

	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		month, okMonth := monthsByPrefix[strings.ToLower(m[1])[:3]]
		day, err := strconv.Atoi(m[2])
		if okMonth && err == nil && day >= 1 && day <= 31 {
			target := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
			if target.Before(now.AddDate(0, 0, -1)) {
				target = target.AddDate(1, 0, 0)
			}
			if weekOfPattern.MatchString(text) {
				q.From, q.To = weekBounds(target)
			} else {
				q.From = target
				q.To = target.AddDate(0, 0, 1)
			}
			matched = true
		}
	}

	if !matched && nextWeekPattern.MatchString(text) {
		q.From, q.To = weekBounds(now.AddDate(0, 0, 7))
		matched = true
	}
	if !matched && thisWeekPattern.MatchString(text) {
		q.From = now
		_, q.To = weekBounds(now)
		matched = true
	}

	if m := weekdayPattern.FindStringSubmatch(text); m != nil {
		if wd, ok := weekdaysByName[strings.ToLower(m[1])]; ok {
			q.Weekday = &wd
			matched = true
		}
	}

	switch {
	case afterHourExpr.MatchString(text):
		m := afterHourExpr.FindStringSubmatch(text)
		if h := clockHour(m[1], m[2]); h >= 0 {
			q.AfterHour = h
			matched = true
		}
	case beforeHourExpr.MatchString(text):
		m := beforeHourExpr.FindStringSubmatch(text)
		if h := clockHour(m[1], m[2]); h >= 0 {
			q.BeforeHour = h
			matched = true
		}
	case morningPattern.MatchString(text):
		q.BeforeHour = 12
		matched = true
	case eveningPattern.MatchString(text):
		q.AfterHour = 17
		matched = true
	case afternoonWord.MatchString(text):
		q.AfterHour = 12
		q.BeforeHour = 17
		matched = true
	}

	return q, matched
}

// weekBounds returns Monday 00:00 through the following Monday for the week
// containing t.
func weekBounds(t time.Time) (time.Time, time.Time) {
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

func clockHour(digits, meridiem string) int {
	h, err := strconv.Atoi(digits)
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	switch strings.ToLower(meridiem) {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	default:
		// Bare "after 5" almost always means afternoon.
		if h >= 1 && h <= 7 {
			h += 12
		}
	}
	return h
}
