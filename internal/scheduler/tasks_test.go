package scheduler

import (
	"testing"
	"time"
)

func TestHoldDeadlineTaskRoundTrip(t *testing.T) {
	checkAt := time.Date(2026, 3, 2, 12, 20, 0, 0, time.UTC)
	task, err := NewHoldDeadlineTask(HoldDeadlinePayload{
		ContactID: "c-1",
		Phase:     "release",
		CheckAt:   checkAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TaskHoldDeadline {
		t.Errorf("task type = %q, want %q", task.Type(), TaskHoldDeadline)
	}

	payload, err := ParseHoldDeadlinePayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ContactID != "c-1" || payload.Phase != "release" {
		t.Errorf("payload = %+v", payload)
	}
	if !payload.CheckAt.Equal(checkAt) {
		t.Errorf("checkAt = %v, want %v", payload.CheckAt, checkAt)
	}
}

func TestHoldSweepTask(t *testing.T) {
	task := NewHoldSweepTask()
	if task.Type() != TaskHoldSweep {
		t.Errorf("task type = %q, want %q", task.Type(), TaskHoldSweep)
	}
}
