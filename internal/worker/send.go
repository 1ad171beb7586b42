package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/kitsync/internal/alert"
	"github.com/ignite/kitsync/internal/audience"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/kit"
	"github.com/ignite/kitsync/internal/ledger"
	"github.com/ignite/kitsync/internal/metrics"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/pkg/logger"
	"github.com/ignite/kitsync/internal/render"
	"github.com/ignite/kitsync/internal/schedule"
)

// SendJob turns every "ready" document into a scheduled Kit broadcast and
// marks the document as sent.
type SendJob struct {
	Store      DocumentStore
	Broadcasts BroadcastCreator
	Resolver   *audience.Resolver
	Renderer   *render.Renderer
	Ledger     ledger.Ledger
	Alerts     alert.Notifier
	Gate       schedule.Gate
	Props      config.PropertyNames

	ReadyStatus   string
	SentStatus    string
	PreviewLength int
	DryRun        bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewSendJob wires a SendJob from configuration.
func NewSendJob(cfg *config.Config, store DocumentStore, broadcasts BroadcastCreator, dir audience.Directory,
	renderer *render.Renderer, l ledger.Ledger, alerts alert.Notifier) (*SendJob, error) {
	policy, err := schedule.ParsePolicy(cfg.Send.DateOnlyPolicy)
	if err != nil {
		return nil, err
	}
	return &SendJob{
		Store:      store,
		Broadcasts: broadcasts,
		Resolver: &audience.Resolver{
			Directory: dir,
			TestMode:  cfg.Send.TestMode,
			TestEmail: cfg.Send.TestEmail,
		},
		Renderer:      renderer,
		Ledger:        l,
		Alerts:        alerts,
		Gate:          schedule.Gate{Policy: policy},
		Props:         cfg.Properties,
		ReadyStatus:   cfg.Send.ReadyStatus,
		SentStatus:    cfg.Send.SentStatus,
		PreviewLength: cfg.Send.PreviewLength,
		DryRun:        cfg.Send.DryRun,
	}, nil
}

// Name implements Job.
func (j *SendJob) Name() domain.JobName { return domain.JobSend }

func (j *SendJob) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

// Run implements Job.
func (j *SendJob) Run(ctx context.Context, runID string) ([]Result, error) {
	j.Resolver.Refresh()
	if j.Resolver.TestMode {
		logger.Warn("test mode enabled, every broadcast goes only to the test address",
			"test_email", j.Resolver.TestEmail)
	}

	pages, err := j.Store.QueryDatabase(ctx, notion.Query{
		Filter: notion.SelectEquals(j.Props.Status, j.ReadyStatus),
		Sorts:  []notion.Sort{notion.Ascending(j.Props.PublishDate)},
	})
	if err != nil {
		return nil, fmt.Errorf("querying ready documents: %w", err)
	}
	logger.Info("found documents ready to send", "count", len(pages), "run_id", runID)

	results := make([]Result, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := j.sendOne(ctx, runID, page)
		logResult(domain.JobSend, runID, res)
		results = append(results, res)
	}
	return results, nil
}

// draft is a document prepared for sending.
type draft struct {
	Subject     string
	PreviewText string
	HTML        string
	Decision    domain.ScheduleDecision
	Audience    domain.AudienceSpec
	Filter      domain.RecipientFilter
}

func (j *SendJob) sendOne(ctx context.Context, runID string, page notion.Page) Result {
	res := Result{DocumentID: page.ID, Title: page.Summary(j.Props.Name)}

	rec, err := j.Ledger.LookupSend(ctx, page.ID)
	if err != nil {
		return res.fail(fmt.Errorf("checking send ledger: %w", err))
	}
	if rec != nil && !rec.Reconciled {
		res.BroadcastID = rec.BroadcastID
		return res.fail(notReady("broadcast %s from run %s is awaiting manual reconciliation", rec.BroadcastID, rec.RunID))
	}

	d, err := j.prepare(ctx, page)
	if err != nil {
		return res.fail(err)
	}

	if j.DryRun {
		logger.Info("dry run, not creating broadcast",
			"document_id", page.ID,
			"subject", d.Subject,
			"send_at", d.Decision.SendAt.Format(time.RFC3339),
			"audience", describeFilter(d.Filter),
			"html_bytes", len(d.HTML),
		)
		res.Outcome = domain.OutcomeSkipped
		res.Reason = "dry run"
		return res
	}

	broadcastID, err := j.Broadcasts.CreateBroadcast(ctx, kit.BroadcastRequest{
		Subject:     d.Subject,
		PreviewText: d.PreviewText,
		Content:     d.HTML,
		SendAt:      d.Decision.SendAt,
		Filter:      d.Filter,
	})
	if err != nil {
		return res.fail(fmt.Errorf("creating broadcast: %w", err))
	}
	res.BroadcastID = broadcastID
	metrics.BroadcastsCreated.WithLabelValues(string(d.Filter.Kind)).Inc()

	// From here on the broadcast exists and must never be created again.
	sentAt := j.now()
	ledgerErr := j.Ledger.RecordSend(ctx, ledger.SendRecord{
		DocumentID:  page.ID,
		BroadcastID: broadcastID,
		RunID:       runID,
		Subject:     d.Subject,
		Audience:    describeFilter(d.Filter),
		SendAt:      d.Decision.SendAt,
		CreatedAt:   sentAt,
	})
	if ledgerErr != nil {
		logger.Error("broadcast created but ledger write failed",
			"document_id", page.ID, "broadcast_id", broadcastID, "error", ledgerErr)
	}

	patch := notion.PropertyPatch{
		j.Props.Status:      notion.SelectValue(j.SentStatus),
		j.Props.BroadcastID: notion.RichTextValue(broadcastID),
		j.Props.SentDate:    notion.DateValue(sentAt),
	}
	if err := j.Store.UpdateProperties(ctx, page.ID, patch); err != nil {
		logger.Warn("broadcast created but Notion write-back failed, reconcile manually",
			"document_id", page.ID,
			"broadcast_id", broadcastID,
			"error", err,
		)
		details := map[string]string{"error": err.Error()}
		if ledgerErr != nil {
			// Nothing records this broadcast, so the next run will send it again.
			details["ledger_error"] = ledgerErr.Error()
		}
		j.raise(ctx, runID, res, alert.SeverityCritical, "broadcast created but Notion write-back failed", details)
		res.Outcome = domain.OutcomePartial
		res.Err = err
		res.Reason = "write-back failed"
		return res
	}

	if ledgerErr != nil {
		// The document is marked sent, so it stays out of later runs.
		j.raise(ctx, runID, res, alert.SeverityWarning, "broadcast created but ledger write failed",
			map[string]string{"error": ledgerErr.Error()})
	} else if err := j.Ledger.MarkReconciled(ctx, page.ID); err != nil {
		logger.Warn("could not mark ledger record reconciled",
			"document_id", page.ID, "broadcast_id", broadcastID, "error", err)
	}

	res.Outcome = domain.OutcomeSucceeded
	return res
}

// prepare runs every check and transformation that precedes the send. It has
// no side effects on the store or the provider.
func (j *SendJob) prepare(ctx context.Context, page notion.Page) (*draft, error) {
	props := page.Properties

	subject := strings.TrimSpace(props.Text(j.Props.Subject))
	if subject == "" {
		subject = strings.TrimSpace(props.Text(j.Props.Name))
	}
	if subject == "" {
		return nil, notReady("no subject line")
	}

	decision := j.Gate.Decide(props.Date(j.Props.PublishDate), j.now())
	if !decision.Proceed() {
		return nil, notReady("%s: %s", decision.Outcome, decision.Reason)
	}

	blocks, err := j.Store.ListBlocks(ctx, page.ID)
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil, notReady("document has no content")
	}

	html := j.Renderer.RenderDocument(ctx, page.ID, blocks)

	preview := strings.TrimSpace(props.Text(j.Props.PreviewText))
	if preview == "" {
		preview = render.PreviewText(blocks, j.PreviewLength)
	}

	spec := audience.SpecFromSegments(props.MultiSelect(j.Props.Segments), j.Resolver.TestMode)
	filter, err := j.Resolver.Resolve(ctx, spec)
	if err != nil {
		if errors.Is(err, audience.ErrNoMatchingAudience) || errors.Is(err, audience.ErrNoTestEmail) {
			return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return nil, fmt.Errorf("resolving audience: %w", err)
	}

	return &draft{
		Subject:     subject,
		PreviewText: preview,
		HTML:        html,
		Decision:    decision,
		Audience:    spec,
		Filter:      filter,
	}, nil
}

func (j *SendJob) raise(ctx context.Context, runID string, res Result, sev alert.Severity, title string, details map[string]string) {
	if j.Alerts == nil {
		return
	}
	details["document_id"] = res.DocumentID
	details["title"] = res.Title
	details["broadcast_id"] = res.BroadcastID
	err := j.Alerts.Notify(ctx, alert.Alert{
		Severity: sev,
		Job:      string(domain.JobSend),
		RunID:    runID,
		Title:    title,
		Details:  details,
		At:       j.now(),
	})
	if err != nil {
		logger.Error("failed to send alert", "document_id", res.DocumentID, "title", title, "error", err)
	}
}

func (r Result) fail(err error) Result {
	r.Outcome = outcomeOf(err)
	r.Err = err
	r.Reason = err.Error()
	return r
}

func describeFilter(f domain.RecipientFilter) string {
	switch f.Kind {
	case domain.FilterTestEmail:
		return "test:" + f.Email
	case domain.FilterConjunction:
		return fmt.Sprintf("tags=%v segments=%v", f.TagIDs, f.SegmentIDs)
	}
	return string(f.Kind)
}
