package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/kit"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/stats"
)

// ErrNotReady marks a document that is skipped because it is not ready to
// process (missing subject, schedule or content, unresolved audience, pending
// reconciliation). It is a skip, not a failure.
var ErrNotReady = errors.New("document not ready")

func notReady(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotReady, fmt.Sprintf(format, args...))
}

// DocumentStore is the part of the Notion client the jobs use.
type DocumentStore interface {
	QueryDatabase(ctx context.Context, q notion.Query) ([]notion.Page, error)
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)
	ListBlocks(ctx context.Context, pageID string) ([]domain.ContentBlock, error)
	UpdateProperties(ctx context.Context, pageID string, patch notion.PropertyPatch) error
	CreateComment(ctx context.Context, pageID, text string) error
}

// BroadcastCreator creates broadcasts.
type BroadcastCreator interface {
	CreateBroadcast(ctx context.Context, br kit.BroadcastRequest) (string, error)
}

// StatsSource reads broadcast statistics.
type StatsSource interface {
	GetBroadcastStats(ctx context.Context, broadcastID string) (domain.StatsSnapshot, error)
	GetBroadcastClicks(ctx context.Context, broadcastID string) ([]stats.LinkClicks, error)
}

// Job is one batch pass over the document store.
type Job interface {
	Name() domain.JobName
	// Run processes every candidate document sequentially. A returned error
	// means the run could not start (e.g. the candidate query failed);
	// per-document errors are reported in the results.
	Run(ctx context.Context, runID string) ([]Result, error)
}

// Result is the outcome of one document.
type Result struct {
	DocumentID  string         `json:"document_id"`
	Title       string         `json:"title"`
	Outcome     domain.Outcome `json:"outcome"`
	BroadcastID string         `json:"broadcast_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Err         error          `json:"-"`
}

// outcomeOf classifies a processing error.
func outcomeOf(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeSucceeded
	case errors.Is(err, ErrNotReady):
		return domain.OutcomeSkipped
	default:
		return domain.OutcomeFailed
	}
}

// Summary counts outcomes over a run.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Partial   int `json:"partial"`
}

// Add counts one outcome.
func (s *Summary) Add(o domain.Outcome) {
	switch o {
	case domain.OutcomeSucceeded:
		s.Succeeded++
	case domain.OutcomeSkipped:
		s.Skipped++
	case domain.OutcomeFailed:
		s.Failed++
	case domain.OutcomePartial:
		s.Partial++
	}
}

// Total is the number of documents counted.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed + s.Partial
}

// Summarize counts the outcomes of results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r.Outcome)
	}
	return s
}
