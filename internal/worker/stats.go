package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/ledger"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/pkg/logger"
	"github.com/ignite/kitsync/internal/schedule"
	"github.com/ignite/kitsync/internal/stats"
)

// StatsJob copies Kit broadcast statistics onto every sent document.
type StatsJob struct {
	Store   DocumentStore
	Source  StatsSource
	Ledger  ledger.Ledger
	Gate    schedule.Gate
	Props   config.PropertyNames
	DryRun  bool
	Exclude []string

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewStatsJob wires a StatsJob from configuration.
func NewStatsJob(cfg *config.Config, store DocumentStore, source StatsSource, l ledger.Ledger) (*StatsJob, error) {
	policy, err := schedule.ParsePolicy(cfg.Stats.DateOnlyPolicy)
	if err != nil {
		return nil, err
	}
	return &StatsJob{
		Store:   store,
		Source:  source,
		Ledger:  l,
		Gate:    schedule.Gate{Policy: policy},
		Props:   cfg.Properties,
		DryRun:  cfg.Send.DryRun,
		Exclude: cfg.Stats.ExcludedLinkPatterns,
	}, nil
}

// Name implements Job.
func (j *StatsJob) Name() domain.JobName { return domain.JobStats }

func (j *StatsJob) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

// Run implements Job.
func (j *StatsJob) Run(ctx context.Context, runID string) ([]Result, error) {
	pages, err := j.Store.QueryDatabase(ctx, notion.Query{
		Filter: notion.RichTextNotEmpty(j.Props.BroadcastID),
	})
	if err != nil {
		return nil, fmt.Errorf("querying sent documents: %w", err)
	}
	logger.Info("found documents with broadcasts", "count", len(pages), "run_id", runID)

	results := make([]Result, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := j.syncOne(ctx, page)
		logResult(domain.JobStats, runID, res)
		results = append(results, res)
	}
	return results, nil
}

func (j *StatsJob) syncOne(ctx context.Context, page notion.Page) Result {
	res := Result{DocumentID: page.ID, Title: page.Summary(j.Props.Name)}
	props := page.Properties

	broadcastID := strings.TrimSpace(props.Text(j.Props.BroadcastID))
	if broadcastID == "" {
		return res.fail(notReady("no broadcast id"))
	}
	res.BroadcastID = broadcastID

	// A broadcast scheduled for the future has nothing to report yet.
	if raw := props.Date(j.Props.PublishDate); raw != "" {
		if d := j.Gate.Decide(raw, j.now()); d.Proceed() {
			return res.fail(notReady("scheduled for %s, not sent yet", d.SendAt.Format(time.RFC3339)))
		}
	}

	snap, err := j.Source.GetBroadcastStats(ctx, broadcastID)
	if err != nil {
		return res.fail(fmt.Errorf("fetching stats for broadcast %s: %w", broadcastID, err))
	}

	links, err := j.Source.GetBroadcastClicks(ctx, broadcastID)
	if err != nil {
		logger.Warn("link clicks unavailable, using total clicks for click-to-open",
			"document_id", page.ID, "broadcast_id", broadcastID, "error", err)
	} else {
		content := stats.ContentClicks(links, j.Exclude)
		snap.ContentClicks = &content
	}

	n := stats.Normalize(snap)
	logger.Info("normalized broadcast stats",
		"document_id", page.ID,
		"broadcast_id", broadcastID,
		"recipients", n.Recipients,
		"open_rate", n.OpenRate,
		"click_to_open_rate", n.ClickToOpenRate,
		"content_clicks_used", n.ContentClicksUsed,
	)

	if j.DryRun {
		res.Outcome = domain.OutcomeSkipped
		res.Reason = "dry run"
		return res
	}

	if err := j.Store.UpdateProperties(ctx, page.ID, j.statsPatch(n)); err != nil {
		return res.fail(fmt.Errorf("writing stats: %w", err))
	}
	if err := j.Ledger.RecordStats(ctx, page.ID, broadcastID, n); err != nil {
		logger.Warn("stats written to Notion but not to the ledger",
			"document_id", page.ID, "broadcast_id", broadcastID, "error", err)
	}

	res.Outcome = domain.OutcomeSucceeded
	return res
}

func (j *StatsJob) statsPatch(n domain.NormalizedStats) notion.PropertyPatch {
	patch := notion.PropertyPatch{
		j.Props.Recipients: notion.IntValue(n.Recipients),
		j.Props.Opens:      notion.IntValue(n.Opens),
		j.Props.Clicks:     notion.IntValue(n.TotalClicks),
		j.Props.OpenRate:   notion.NumberValue(n.OpenRate),
		j.Props.ClickRate:  notion.NumberValue(n.ClickRate),
	}
	if j.Props.ClickToOpen != "" {
		patch[j.Props.ClickToOpen] = notion.NumberValue(n.ClickToOpenRate)
	}
	return patch
}
