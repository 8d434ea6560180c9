// Package server receives Slack Events API deliveries over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sambot/internal/dispatch"
	"sambot/internal/domain"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// EventDispatcher handles one decoded message event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) domain.AckDecision
}

// TaskTracker exposes background task state and drains it on shutdown.
type TaskTracker interface {
	List() []dispatch.BackgroundTask
	Wait(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	Addr          string
	Path          string // default /slack/events
	SigningSecret string
	Dispatcher    EventDispatcher
	Tasks         TaskTracker
	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

// Server is the HTTP front of the relay.
type Server struct {
	addr       string
	path       string
	secret     string
	dispatcher EventDispatcher
	tasks      TaskTracker
	router     chi.Router
	logger     *slog.Logger
}

// New builds the router. /tasks is mounted only when Tasks is set.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/slack/events"
	}
	s := &Server{
		addr:       cfg.Addr,
		path:       cfg.Path,
		secret:     cfg.SigningSecret,
		dispatcher: cfg.Dispatcher,
		tasks:      cfg.Tasks,
		logger:     cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post(s.path, s.handleEvents)
	r.Get("/healthz", s.handleHealth)
	if s.tasks != nil {
		r.Get("/tasks", s.handleTasks)
	}
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.Metrics)
	}
	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts the listener down and
// waits for in-flight background tasks.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("listening for slack events", "addr", ln.Addr().String(), "path", s.path)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown", "err", err)
	}

	if s.tasks != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelDrain()
		if err := s.tasks.Wait(drainCtx); err != nil {
			return fmt.Errorf("drain background tasks: %w", err)
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.tasks.List()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAck renders an acknowledgment decision.
func writeAck(w http.ResponseWriter, ack domain.AckDecision) {
	if ack.SuppressRetry() {
		w.Header().Set(domain.NoRetryHeader, "1")
	}
	body := ack.Body()
	if body != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(ack.StatusCode())
	if body != "" {
		w.Write([]byte(body))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
