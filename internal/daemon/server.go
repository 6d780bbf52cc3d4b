package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// Engine is the activation/deactivation surface exposed over the socket.
type Engine interface {
	Activate(ctx context.Context, mode string, opts domain.ActivationOptions) (domain.ActivationResult, error)
	Deactivate(ctx context.Context) domain.DeactivationReport
	Status() domain.Status
}

// ServerOptions configures the control server.
type ServerOptions struct {
	SocketPath        string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the control API on a unix socket.
type Server struct {
	http    *http.Server
	engine  Engine
	metrics *Metrics
	logger  *zap.Logger
	opts    ServerOptions

	deactivated chan struct{}
	once        sync.Once
}

// NewServer constructs a control server. It does not listen until Serve.
func NewServer(engine Engine, metrics *Metrics, opts ServerOptions, logger *zap.Logger) *Server {
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		// Deactivation may run several bounded steps back to back.
		opts.WriteTimeout = time.Minute
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	mux := http.NewServeMux()
	s := &Server{
		engine:      engine,
		metrics:     metrics,
		logger:      logger,
		opts:        opts,
		deactivated: make(chan struct{}),
		http: &http.Server{
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
	}
	s.http.Handler = s.withLogging(mux)

	mux.HandleFunc(RouteHealthz, s.handleHealthz)
	mux.HandleFunc(RouteStatus, s.handleStatus)
	mux.HandleFunc(RouteActivate, s.handleActivate)
	mux.HandleFunc(RouteDeactivate, s.handleDeactivate)
	mux.Handle(RouteMetrics, metrics.Handler())

	return s
}

// Serve listens on the socket and blocks until ctx is canceled.
// A stale socket file left by a dead supervisor is removed first.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.opts.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.SocketPath, err)
	}
	if err := os.Chmod(s.opts.SocketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}
	defer os.Remove(s.opts.SocketPath)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", zap.String("socket", s.opts.SocketPath))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("control server shutdown", zap.Error(err))
		}
		return nil
	}
}

// Deactivated is closed once a deactivate request has been answered.
func (s *Server) Deactivated() <-chan struct{} {
	return s.deactivated
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// handleActivate answers 200 for ok and insufficient_privilege outcomes,
// 404 for mode_not_found and 500 when Mode State could not be written.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ActivateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, newAPIError("invalid JSON: "+err.Error()))
		return
	}
	if req.Mode == "" {
		writeJSON(w, http.StatusBadRequest, newAPIError("mode is required"))
		return
	}

	res, err := s.engine.Activate(r.Context(), req.Mode, domain.ActivationOptions{
		BlockNetwork: req.BlockNetwork,
		Monitor:      req.Monitor,
	})
	if err != nil {
		s.logger.Error("activation failed", zap.String("mode", req.Mode), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, newAPIError(err.Error()))
		return
	}

	if res.Outcome == domain.OutcomeModeNotFound {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	s.metrics.ObserveNetwork("apply", &res.Network)
	s.metrics.SetActive(true)
	writeJSON(w, http.StatusOK, res)
}

// handleDeactivate always answers 200 with the step report, then signals
// the supervisor to exit.
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	// Teardown completes even if the caller gives up waiting.
	report := s.engine.Deactivate(context.WithoutCancel(r.Context()))
	s.metrics.ObserveNetwork("revert", report.Step(domain.StepNetwork))
	s.metrics.SetActive(false)
	writeJSON(w, http.StatusOK, report)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	s.once.Do(func() { close(s.deactivated) })
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeJSON(w, http.StatusMethodNotAllowed, newAPIError("method not allowed"))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
