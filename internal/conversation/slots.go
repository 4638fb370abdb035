package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"inkflow_backend/internal/calendar"
)

var (
	optionNumberPattern = regexp.MustCompile(`(?i)\b(?:option|number|opci[oó]n|n[uú]mero)\s*#?\s*(\d{1,2})\b|#(\d{1,2})\b`)
	bareNumberPattern   = regexp.MustCompile(`^\s*(\d{1,2})\s*[.!)]?\s*$`)
	clockPattern        = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	// No leading \b on the Spanish branch: Go word boundaries are ASCII and
	// never fire before an accented letter.
	lastOnePattern = regexp.MustCompile(`(?i)\bthe\s+last\s+(?:one|option)\b|(?:^|\s)[uú]ltim[ao]\b`)
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"primera": 1, "primero": 1, "segunda": 2, "segundo": 2,
	"tercera": 3, "tercero": 3, "cuarta": 4, "cuarto": 4,
}

// FormatSlotList renders at most max slots as a numbered list the lead can
// answer by number. The list always ends with a reply prompt.
func FormatSlotList(slots []calendar.Slot, language string, max int) string {
	if max <= 0 || max > len(slots) {
		max = len(slots)
	}
	var b strings.Builder
	if language == "es" {
		b.WriteString("Tengo estos horarios disponibles:\n")
	} else {
		b.WriteString("Here are the times I have open:\n")
	}
	for i := 0; i < max; i++ {
		fmt.Fprintf(&b, "%d. %s\n", i+1, slots[i].DisplayText)
	}
	if language == "es" {
		b.WriteString("¿Cuál te funciona mejor?")
	} else {
		b.WriteString("Which works best?")
	}
	return b.String()
}

// MatchSlotSelection resolves the lead's reply against the slots most
// recently offered. It returns nil when the reply does not identify exactly
// one slot; ambiguity is never guessed through.
func MatchSlotSelection(text string, slots []calendar.Slot) *calendar.Slot {
	if len(slots) == 0 {
		return nil
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil
	}

	if idx := selectionIndex(lower, len(slots)); idx >= 0 {
		return &slots[idx]
	}
	if slot := matchByClock(lower, slots); slot != nil {
		return slot
	}
	return matchByWeekday(lower, slots)
}

func selectionIndex(lower string, count int) int {
	if m := optionNumberPattern.FindStringSubmatch(lower); m != nil {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		if n, err := strconv.Atoi(digits); err == nil && n >= 1 && n <= count {
			return n - 1
		}
	}
	if m := bareNumberPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= count {
			return n - 1
		}
	}
	for word, n := range ordinalWords {
		if n <= count && containsWord(lower, word) {
			return n - 1
		}
	}
	if lastOnePattern.MatchString(lower) {
		return count - 1
	}
	return -1
}

func matchByClock(lower string, slots []calendar.Slot) *calendar.Slot {
	m := clockPattern.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if m[3] == "pm" && hour < 12 {
		hour += 12
	}
	if m[3] == "am" && hour == 12 {
		hour = 0
	}

	var found *calendar.Slot
	for i := range slots {
		local := slots[i].StartTime
		if local.Hour() == hour && local.Minute() == minute {
			if found != nil {
				return nil // two slots share the time; ask, don't guess
			}
			found = &slots[i]
		}
	}
	return found
}

func matchByWeekday(lower string, slots []calendar.Slot) *calendar.Slot {
	m := weekdayPattern.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	wd, ok := weekdaysByName[strings.ToLower(m[1])]
	if !ok {
		return nil
	}
	var found *calendar.Slot
	for i := range slots {
		if slots[i].StartTime.Weekday() == wd {
			if found != nil {
				return nil
			}
			found = &slots[i]
		}
	}
	return found
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordChar(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isWordChar(text[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// RecoverOfferedSlots rebuilds the offered-slot context after a selection
// arrives with no recorded list: first the stored encoding, then the single
// released slot, else nothing.
func RecoverOfferedSlots(state *CanonicalState) ([]calendar.Slot, bool) {
	if len(state.LastSentSlots) > 0 {
		return state.LastSentSlots, true
	}
	if state.LastReleasedSlot != nil {
		return []calendar.Slot{{
			StartTime:   state.LastReleasedSlot.Start,
			EndTime:     state.LastReleasedSlot.End,
			DisplayText: state.LastReleasedSlot.Display,
		}}, true
	}
	return nil, false
}

// SlotStillOpen reports whether a previously offered slot is present in a
// fresh availability fetch, compared by start time.
func SlotStillOpen(slot calendar.Slot, fresh []calendar.Slot) bool {
	for _, s := range fresh {
		if s.StartTime.Equal(slot.StartTime) {
			return true
		}
	}
	return false
}

// NearestAlternatives returns up to max fresh slots ordered by distance from
// the slot the lead wanted, for the "that one just went" recovery message.
func NearestAlternatives(wanted calendar.Slot, fresh []calendar.Slot, max int) []calendar.Slot {
	out := make([]calendar.Slot, 0, len(fresh))
	out = append(out, fresh...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && absDuration(out[j].StartTime.Sub(wanted.StartTime)) < absDuration(out[j-1].StartTime.Sub(wanted.StartTime)); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
