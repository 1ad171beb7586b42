package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// Server wraps the HTTP server lifecycle.
type Server struct {
	srv *http.Server
}

// NewServer builds the ops server on cfg.Addr().
func NewServer(cfg config.ServerConfig, h *Handlers, gatherer prometheus.Gatherer) *Server {
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr(),
		Handler:           SetupRoutes(h, cfg.AllowedOrigins, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger.Info("ops server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
