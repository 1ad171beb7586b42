// Package api is the kitsync ops server: health, Prometheus metrics, manual
// job triggers and document previews.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/pkg/distlock"
	"github.com/ignite/kitsync/internal/pkg/httputil"
	"github.com/ignite/kitsync/internal/worker"
)

// JobRunner runs batch jobs.
type JobRunner interface {
	Has(name domain.JobName) bool
	Run(ctx context.Context, name domain.JobName) (*worker.Report, error)
}

// Previewer renders a document without sending it.
type Previewer interface {
	Preview(ctx context.Context, pageID string) (*worker.Preview, error)
}

// Handlers holds the ops server dependencies.
type Handlers struct {
	runner    JobRunner
	previewer Previewer
	health    *HealthChecker
	started   time.Time

	// busy admits one HTTP-triggered run at a time.
	busy sync.Mutex

	mu   sync.RWMutex
	last map[domain.JobName]*worker.Report
}

// NewHandlers creates the handler set. previewer and health may be nil.
func NewHandlers(runner JobRunner, previewer Previewer, health *HealthChecker) *Handlers {
	return &Handlers{
		runner:    runner,
		previewer: previewer,
		health:    health,
		started:   time.Now().UTC(),
		last:      make(map[domain.JobName]*worker.Report),
	}
}

// RunJob runs a job synchronously and returns its report.
func (h *Handlers) RunJob(w http.ResponseWriter, r *http.Request) {
	name := domain.JobName(chi.URLParam(r, "job"))
	if !name.Valid() || !h.runner.Has(name) {
		httputil.NotFound(w, "unknown job: "+string(name))
		return
	}

	if !h.busy.TryLock() {
		httputil.Conflict(w, "busy", "another job is running")
		return
	}
	defer h.busy.Unlock()

	// The run outlives a dropped client connection.
	report, err := h.runner.Run(context.WithoutCancel(r.Context()), name)
	switch {
	case errors.Is(err, distlock.ErrLocked):
		httputil.Conflict(w, "locked", "job is already running elsewhere")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	h.mu.Lock()
	h.last[name] = report
	h.mu.Unlock()

	httputil.OK(w, report)
}

// LastRun returns the latest report of a job run through this server.
func (h *Handlers) LastRun(w http.ResponseWriter, r *http.Request) {
	name := domain.JobName(chi.URLParam(r, "job"))
	h.mu.RLock()
	report, ok := h.last[name]
	h.mu.RUnlock()
	if !ok {
		httputil.NotFound(w, "no run recorded for job: "+string(name))
		return
	}
	httputil.OK(w, report)
}

// PreviewDocument renders a document as it would be sent. With
// ?format=html the rendered body is returned as a page.
func (h *Handlers) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	if h.previewer == nil {
		httputil.NotFound(w, "preview is not enabled")
		return
	}
	pageID := chi.URLParam(r, "pageID")

	preview, err := h.previewer.Preview(r.Context(), pageID)
	switch {
	case errors.Is(err, notion.ErrNotFound):
		httputil.NotFound(w, "document not found: "+pageID)
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		httputil.HTML(w, preview.HTML)
		return
	}
	httputil.OK(w, preview)
}
