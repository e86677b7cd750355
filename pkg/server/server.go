// Package server answers keyword queries over HTTP. Every request runs its
// own loop with its own history; only the tool runner and the completion
// client are shared.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmuk/blogsearch/pkg/chat/agent"
	"github.com/jmuk/blogsearch/pkg/config"
	"github.com/jmuk/blogsearch/pkg/tools"
)

const maxBodyBytes = 64 << 10

type Server struct {
	cfg    *config.Config
	runner *tools.ToolRunner
	client agent.Client
	logger *slog.Logger

	inFlight atomic.Int64
	served   atomic.Int64
}

func New(cfg *config.Config, runner *tools.ToolRunner, client agent.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, runner: runner, client: client, logger: logger}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestSize(maxBodyBytes))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		timeout := s.cfg.Server.RequestTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		r.Use(chimw.Timeout(timeout))
		r.Post("/ask", s.handleAsk)
	})
	return r
}

// ListenAndServe serves until ctx is done, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Requests keep the session of ctx but outlive its cancellation.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
