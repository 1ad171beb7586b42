package domain

import "time"

// ScheduleOutcome is the send/skip verdict for a requested send time.
type ScheduleOutcome string

const (
	ScheduleProceed         ScheduleOutcome = "proceed"
	ScheduleSkipPast        ScheduleOutcome = "skip_past"
	ScheduleSkipMissingTime ScheduleOutcome = "skip_missing_time"
	ScheduleSkipInvalid     ScheduleOutcome = "skip_invalid"
)

// ScheduleDecision carries the verdict and, only for ScheduleProceed, the
// normalized UTC send time.
type ScheduleDecision struct {
	SendAt  time.Time       `json:"send_at,omitempty"`
	Outcome ScheduleOutcome `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
}

// Proceed reports whether the send may go ahead.
func (d ScheduleDecision) Proceed() bool {
	return d.Outcome == ScheduleProceed
}
