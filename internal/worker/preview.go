package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/relay"
	"github.com/ignite/kitsync/internal/render"
)

// previews link the source images; nothing is uploaded
var previewRenderer = render.NewRenderer(relay.Passthrough{})

// Preview is what a send would produce for one document, computed without
// creating a broadcast or touching the ledger.
type Preview struct {
	DocumentID  string                  `json:"document_id"`
	Title       string                  `json:"title"`
	Subject     string                  `json:"subject"`
	PreviewText string                  `json:"preview_text"`
	HTML        string                  `json:"html"`
	Schedule    domain.ScheduleDecision `json:"schedule"`
	Audience    domain.AudienceSpec     `json:"audience"`
	Filter      *domain.RecipientFilter `json:"filter,omitempty"`
	Ready       bool                    `json:"ready"`
	NotReady    string                  `json:"not_ready,omitempty"`
}

// Preview renders one document the way Run would send it. A document that is
// not ready still yields a Preview with NotReady set; only I/O failures are
// returned as errors.
func (j *SendJob) Preview(ctx context.Context, pageID string) (*Preview, error) {
	page, err := j.Store.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	p := &Preview{DocumentID: page.ID, Title: page.Summary(j.Props.Name)}
	d, err := j.prepare(ctx, *page)
	switch {
	case err == nil:
		p.Ready = true
	case errors.Is(err, ErrNotReady):
		p.NotReady = err.Error()
		// Render anyway so the operator can see the body.
		blocks, lerr := j.Store.ListBlocks(ctx, page.ID)
		if lerr != nil {
			return nil, fmt.Errorf("listing blocks: %w", lerr)
		}
		p.HTML = previewRenderer.RenderDocument(ctx, page.ID, blocks)
		p.Schedule = j.Gate.Decide(page.Properties.Date(j.Props.PublishDate), j.now())
		return p, nil
	default:
		return nil, err
	}

	p.Subject = d.Subject
	p.PreviewText = d.PreviewText
	p.HTML = d.HTML
	p.Schedule = d.Decision
	p.Audience = d.Audience
	p.Filter = &d.Filter
	return p, nil
}
