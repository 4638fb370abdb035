package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskHoldDeadline = "holds.deadline"

const TaskHoldSweep = "holds.sweep"

// HoldDeadlinePayload is a scheduled check for one contact's hold. Phase is
// informational; the evaluator re-derives what is due from the hold fields,
// so a deadline firing after the lead already paid is a harmless no-op.
type HoldDeadlinePayload struct {
	ContactID string    `json:"contactId"`
	Phase     string    `json:"phase"`
	CheckAt   time.Time `json:"checkAt"`
}

func NewHoldDeadlineTask(payload HoldDeadlinePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHoldDeadline, data), nil
}

func ParseHoldDeadlinePayload(task *asynq.Task) (HoldDeadlinePayload, error) {
	var payload HoldDeadlinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HoldDeadlinePayload{}, err
	}
	return payload, nil
}

func NewHoldSweepTask() *asynq.Task {
	return asynq.NewTask(TaskHoldSweep, nil)
}
