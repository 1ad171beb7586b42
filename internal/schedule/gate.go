// Package schedule decides whether a document's requested send time allows a
// send to proceed.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/kitsync/internal/domain"
)

// Policy controls how a date-only value (no time of day) is treated.
type Policy string

const (
	// PolicyStrict rejects date-only values as skip_missing_time.
	PolicyStrict Policy = "strict"
	// PolicyEndOfDay reads a date-only value as 23:59:59 UTC of that day.
	PolicyEndOfDay Policy = "end_of_day"
)

// ParsePolicy maps a config string to a Policy, defaulting to strict.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyEndOfDay:
		return PolicyEndOfDay, nil
	}
	return "", fmt.Errorf("unknown schedule policy %q", s)
}

const dateOnlyLayout = "2006-01-02"

// Layouts without an offset are read as UTC.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Gate is a pure function of (raw value, now).
type Gate struct {
	Policy Policy
}

// Decide returns the verdict for raw relative to now. Only a proceed decision
// carries a SendAt: the parsed instant, in UTC, with its fractional seconds.
func (g Gate) Decide(raw string, now time.Time) domain.ScheduleDecision {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.ScheduleDecision{Outcome: domain.ScheduleSkipMissingTime, Reason: "no publish date"}
	}

	t, hasTime, err := parse(raw)
	if err != nil {
		return domain.ScheduleDecision{Outcome: domain.ScheduleSkipInvalid, Reason: err.Error()}
	}

	if !hasTime {
		if g.Policy != PolicyEndOfDay {
			return domain.ScheduleDecision{
				Outcome: domain.ScheduleSkipMissingTime,
				Reason:  fmt.Sprintf("publish date %s has no time of day", raw),
			}
		}
		t = t.Add(24*time.Hour - time.Second)
	}

	t = t.UTC()
	if t.Before(now.UTC()) {
		return domain.ScheduleDecision{
			Outcome: domain.ScheduleSkipPast,
			Reason:  fmt.Sprintf("publish time %s is before %s", t.Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano)),
		}
	}

	return domain.ScheduleDecision{SendAt: t, Outcome: domain.ScheduleProceed}
}

func parse(raw string) (time.Time, bool, error) {
	if !strings.Contains(raw, "T") {
		t, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("unparsable publish date %q", raw)
		}
		return t, false, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparsable publish date %q", raw)
}
