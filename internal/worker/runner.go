package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/kitsync/internal/alert"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/metrics"
	"github.com/ignite/kitsync/internal/pkg/distlock"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// Report is the outcome of one job run.
type Report struct {
	RunID      string         `json:"run_id"`
	Job        domain.JobName `json:"job"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Summary    Summary        `json:"summary"`
	Results    []Result       `json:"results"`
}

// LockFunc returns the run lock for a job.
type LockFunc func(job domain.JobName) distlock.DistLock

// Runner executes jobs one at a time per job name, guarded by a run lock, and
// reports the summary through logs, metrics and alerts.
type Runner struct {
	jobs   map[domain.JobName]Job
	lock   LockFunc
	alerts alert.Notifier
}

// NewRunner creates a runner for jobs. lock may be nil, which uses
// process-local locks; alerts may be nil.
func NewRunner(lock LockFunc, alerts alert.Notifier, jobs ...Job) *Runner {
	if lock == nil {
		lock = func(job domain.JobName) distlock.DistLock {
			return distlock.NewLock(nil, nil, "kitsync:"+string(job), 0)
		}
	}
	r := &Runner{
		jobs:   make(map[domain.JobName]Job, len(jobs)),
		lock:   lock,
		alerts: alerts,
	}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

// Has reports whether a job is registered.
func (r *Runner) Has(name domain.JobName) bool {
	_, ok := r.jobs[name]
	return ok
}

// Run executes the named job. It returns distlock.ErrLocked when another run
// of the same job holds the lock, and an error when the run could not start.
// Per-document failures never produce an error; they are in the report.
func (r *Runner) Run(ctx context.Context, name domain.JobName) (*Report, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Job:       name,
		StartedAt: time.Now().UTC(),
	}
	logger.Info("job run starting", "job", string(name), "run_id", report.RunID)

	err := distlock.Run(ctx, r.lock(name), func(ctx context.Context) error {
		results, err := job.Run(ctx, report.RunID)
		report.Results = results
		return err
	})
	report.FinishedAt = time.Now().UTC()
	report.Summary = Summarize(report.Results)

	jobLabel := string(name)
	metrics.JobDuration.WithLabelValues(jobLabel).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	for _, res := range report.Results {
		metrics.DocumentsTotal.WithLabelValues(jobLabel, string(res.Outcome)).Inc()
	}

	switch {
	case errors.Is(err, distlock.ErrLocked):
		metrics.JobRunsTotal.WithLabelValues(jobLabel, "locked").Inc()
		logger.Warn("job already running elsewhere, skipping this run", "job", jobLabel, "run_id", report.RunID)
		return report, err
	case err != nil:
		metrics.JobRunsTotal.WithLabelValues(jobLabel, "error").Inc()
		logger.Error("job run aborted", "job", jobLabel, "run_id", report.RunID, "error", err)
		r.notifyFailures(ctx, report, err)
		return report, err
	}

	metrics.JobRunsTotal.WithLabelValues(jobLabel, "ok").Inc()
	metrics.LastRunTimestamp.WithLabelValues(jobLabel).Set(float64(report.FinishedAt.Unix()))
	logger.Info("job run complete",
		"job", jobLabel,
		"run_id", report.RunID,
		"succeeded", report.Summary.Succeeded,
		"skipped", report.Summary.Skipped,
		"failed", report.Summary.Failed,
		"partial", report.Summary.Partial,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	if report.Summary.Failed > 0 {
		r.notifyFailures(ctx, report, nil)
	}
	return report, nil
}

func (r *Runner) notifyFailures(ctx context.Context, report *Report, runErr error) {
	if r.alerts == nil {
		return
	}
	details := map[string]string{
		"succeeded": strconv.Itoa(report.Summary.Succeeded),
		"skipped":   strconv.Itoa(report.Summary.Skipped),
		"failed":    strconv.Itoa(report.Summary.Failed),
		"partial":   strconv.Itoa(report.Summary.Partial),
	}
	title := fmt.Sprintf("%d document(s) failed", report.Summary.Failed)
	if runErr != nil {
		title = "run aborted"
		details["error"] = runErr.Error()
	}
	for _, res := range report.Results {
		if res.Outcome == domain.OutcomeFailed {
			details["failed "+res.DocumentID] = res.Reason
		}
	}
	err := r.alerts.Notify(ctx, alert.Alert{
		Severity: alert.SeverityWarning,
		Job:      string(report.Job),
		RunID:    report.RunID,
		Title:    title,
		Details:  details,
		At:       report.FinishedAt,
	})
	if err != nil {
		logger.Error("failed to send run alert", "job", string(report.Job), "error", err)
	}
}

func logResult(job domain.JobName, runID string, res Result) {
	fields := []interface{}{
		"job", string(job),
		"run_id", runID,
		"document_id", res.DocumentID,
		"title", res.Title,
		"outcome", string(res.Outcome),
	}
	if res.BroadcastID != "" {
		fields = append(fields, "broadcast_id", res.BroadcastID)
	}
	if res.Reason != "" {
		fields = append(fields, "reason", res.Reason)
	}

	switch res.Outcome {
	case domain.OutcomeFailed:
		logger.Error("document failed", fields...)
	case domain.OutcomePartial:
		logger.Warn("document partially processed", fields...)
	case domain.OutcomeSkipped:
		logger.Info("document skipped", fields...)
	default:
		logger.Info("document processed", fields...)
	}
}
