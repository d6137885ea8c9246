// Package scheduler enqueues and processes delayed background tasks
// through asynq.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names. Queue entries survive deploys, so these are wire format.
const (
	TaskVisitReminder = "visits:reminder"
)

// VisitReminderPayload identifies the visit to remind about.
type VisitReminderPayload struct {
	VisitID int64 `json:"visitId"`
}

// NewVisitReminderTask builds the reminder task for a visit.
func NewVisitReminderTask(visitID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(VisitReminderPayload{VisitID: visitID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reminder payload: %w", err)
	}
	return asynq.NewTask(TaskVisitReminder, payload), nil
}

// ParseVisitReminderPayload decodes a reminder task payload.
func ParseVisitReminderPayload(t *asynq.Task) (VisitReminderPayload, error) {
	var p VisitReminderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal reminder payload: %w", err)
	}
	if p.VisitID <= 0 {
		return p, fmt.Errorf("reminder payload missing visit id")
	}
	return p, nil
}
