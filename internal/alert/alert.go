// Package alert notifies operators about runs that need manual attention:
// partial sends whose Notion write-back failed, and runs with failures.
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ignite/kitsync/internal/pkg/logger"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one operator notification.
type Alert struct {
	Severity Severity
	Job      string
	RunID    string
	Title    string
	Details  map[string]string
	At       time.Time
}

// Subject renders the one-line summary used as an email subject.
func (a Alert) Subject() string {
	return fmt.Sprintf("[kitsync %s] %s: %s", a.Severity, a.Job, a.Title)
}

// Body renders the alert as plain text, details sorted by key.
func (a Alert) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", a.Title)
	fmt.Fprintf(&b, "job: %s\nrun: %s\nat:  %s\n", a.Job, a.RunID, a.At.UTC().Format(time.RFC3339))
	if len(a.Details) > 0 {
		keys := make([]string, 0, len(a.Details))
		for k := range a.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, a.Details[k])
		}
	}
	return b.String()
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Log is a Notifier that only writes alerts to the log.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(_ context.Context, a Alert) error {
	fields := []interface{}{"job", a.Job, "run_id", a.RunID, "severity", string(a.Severity)}
	for k, v := range a.Details {
		fields = append(fields, k, v)
	}
	logger.Warn("operator alert: "+a.Title, fields...)
	return nil
}
