package worker

import (
	"context"
	"fmt"

	"github.com/ignite/kitsync/internal/carousel"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// CarouselJob posts a carousel script comment on the most recently sent
// documents.
type CarouselJob struct {
	Store      DocumentStore
	Generator  *carousel.Generator
	Refiner    carousel.Refiner
	Props      config.PropertyNames
	SentStatus string
	PageSize   int
	Limit      int
	MaxComment int
	DryRun     bool
}

// NewCarouselJob wires a CarouselJob from configuration. refiner may be nil.
func NewCarouselJob(cfg *config.Config, store DocumentStore, gen *carousel.Generator, refiner carousel.Refiner) *CarouselJob {
	return &CarouselJob{
		Store:      store,
		Generator:  gen,
		Refiner:    refiner,
		Props:      cfg.Properties,
		SentStatus: cfg.Send.SentStatus,
		PageSize:   cfg.Carousel.PageSize,
		Limit:      cfg.Carousel.Limit,
		MaxComment: cfg.Carousel.MaxComment,
		DryRun:     cfg.Send.DryRun,
	}
}

// Name implements Job.
func (j *CarouselJob) Name() domain.JobName { return domain.JobCarousel }

// Run implements Job.
func (j *CarouselJob) Run(ctx context.Context, runID string) ([]Result, error) {
	pages, err := j.Store.QueryDatabase(ctx, notion.Query{
		Filter: notion.And(
			notion.SelectEquals(j.Props.Status, j.SentStatus),
			notion.RichTextNotEmpty(j.Props.BroadcastID),
		),
		Sorts: []notion.Sort{notion.Descending(j.Props.SentDate)},
		Limit: j.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("querying sent documents: %w", err)
	}
	if j.Limit > 0 && len(pages) > j.Limit {
		pages = pages[:j.Limit]
	}
	logger.Info("generating carousel scripts", "count", len(pages), "run_id", runID)

	results := make([]Result, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := j.scriptOne(ctx, page)
		logResult(domain.JobCarousel, runID, res)
		results = append(results, res)
	}
	return results, nil
}

func (j *CarouselJob) scriptOne(ctx context.Context, page notion.Page) Result {
	title := page.Properties.Text(j.Props.Name)
	res := Result{DocumentID: page.ID, Title: page.Summary(j.Props.Name)}

	blocks, err := j.Store.ListBlocks(ctx, page.ID)
	if err != nil {
		return res.fail(fmt.Errorf("listing blocks: %w", err))
	}
	content := carousel.ExtractContent(blocks)
	if content == "" {
		return res.fail(notReady("document has no text content"))
	}

	script, err := j.Generator.Script(title, content)
	if err != nil {
		return res.fail(err)
	}
	if j.Refiner != nil {
		refined, err := j.Refiner.Refine(ctx, title, script)
		if err != nil {
			logger.Warn("script refinement failed, posting template script",
				"document_id", page.ID, "error", err)
		} else {
			script = refined
		}
	}

	if j.DryRun {
		logger.Info("dry run, not posting carousel comment", "document_id", page.ID, "script_chars", len(script))
		res.Outcome = domain.OutcomeSkipped
		res.Reason = "dry run"
		return res
	}

	if err := j.Store.CreateComment(ctx, page.ID, carousel.CommentText(script, j.MaxComment)); err != nil {
		return res.fail(fmt.Errorf("posting carousel comment: %w", err))
	}
	res.Outcome = domain.OutcomeSucceeded
	return res
}
