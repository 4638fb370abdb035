package conversation

import (
	"testing"
	"time"
)

// Monday, March 2 2026.
var prefNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestExtractTimePreferences_Default(t *testing.T) {
	q := ExtractTimePreferences("whenever honestly", &CanonicalState{}, prefNow)
	if !q.From.Equal(prefNow) {
		t.Errorf("From = %v, want now", q.From)
	}
	if !q.To.Equal(prefNow.AddDate(0, 0, 14)) {
		t.Errorf("To = %v, want two weeks out", q.To)
	}
	if q.Weekday != nil || q.AfterHour != 0 || q.BeforeHour != 0 {
		t.Errorf("no preference should leave filters unset, got %+v", q)
	}
}

func TestExtractTimePreferences_MonthDay(t *testing.T) {
	q := ExtractTimePreferences("could I come in March 20th?", &CanonicalState{}, prefNow)
	want := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	if !q.From.Equal(want) {
		t.Errorf("From = %v, want %v", q.From, want)
	}
	if !q.To.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("To = %v, want the next day", q.To)
	}
}

func TestExtractTimePreferences_PastDateRollsForward(t *testing.T) {
	q := ExtractTimePreferences("how about January 10", &CanonicalState{}, prefNow)
	if q.From.Year() != 2027 {
		t.Errorf("past month-day should roll to next year, got %v", q.From)
	}
}

func TestExtractTimePreferences_WeekOf(t *testing.T) {
	q := ExtractTimePreferences("the week of March 20 works", &CanonicalState{}, prefNow)
	// March 20 2026 is a Friday; its week starts Monday March 16.
	wantFrom := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !q.From.Equal(wantFrom) {
		t.Errorf("From = %v, want Monday of that week", q.From)
	}
	if !q.To.Equal(wantFrom.AddDate(0, 0, 7)) {
		t.Errorf("To = %v, want the following Monday", q.To)
	}
}

func TestExtractTimePreferences_NextWeek(t *testing.T) {
	q := ExtractTimePreferences("sometime next week?", &CanonicalState{}, prefNow)
	wantFrom := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !q.From.Equal(wantFrom) {
		t.Errorf("From = %v, want next Monday", q.From)
	}
}

func TestExtractTimePreferences_WeekdayAndHours(t *testing.T) {
	q := ExtractTimePreferences("thursday after 5 would be ideal", &CanonicalState{}, prefNow)
	if q.Weekday == nil || *q.Weekday != time.Thursday {
		t.Fatalf("expected Thursday filter, got %v", q.Weekday)
	}
	if q.AfterHour != 17 {
		t.Errorf("bare 'after 5' should read as 5pm, got %d", q.AfterHour)
	}

	q = ExtractTimePreferences("los viernes en la tarde", &CanonicalState{}, prefNow)
	if q.Weekday == nil || *q.Weekday != time.Friday {
		t.Fatalf("expected Friday filter, got %v", q.Weekday)
	}
	if q.AfterHour != 12 || q.BeforeHour != 17 {
		t.Errorf("afternoon should bound 12-17, got after=%d before=%d", q.AfterHour, q.BeforeHour)
	}
}

func TestExtractTimePreferences_MorningAndEvening(t *testing.T) {
	q := ExtractTimePreferences("mornings are best", &CanonicalState{}, prefNow)
	if q.BeforeHour != 12 {
		t.Errorf("morning should bound before noon, got %d", q.BeforeHour)
	}

	q = ExtractTimePreferences("only after work", &CanonicalState{}, prefNow)
	if q.AfterHour != 17 {
		t.Errorf("after work should read as evening, got %d", q.AfterHour)
	}
}

func TestExtractTimePreferences_FallsBackToStoredPreference(t *testing.T) {
	state := &CanonicalState{TimelinePreference: "next week"}
	q := ExtractTimePreferences("yes please", state, prefNow)
	wantFrom := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !q.From.Equal(wantFrom) {
		t.Errorf("should fall back to stored timeline preference, From = %v", q.From)
	}
}

func TestExtractTimePreferences_TranslatorCarriesThrough(t *testing.T) {
	q := ExtractTimePreferences("next week", &CanonicalState{TranslatorNeeded: true}, prefNow)
	if !q.WithTranslator {
		t.Error("translator-needed state should require translator slots")
	}
}
