package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"secureserve/internal/perimeter/headers"
	"secureserve/internal/perimeter/ratelimit"
)

type serverImpl struct {
	cfg    Config
	logger *slog.Logger

	httpMux    *http.ServeMux
	httpServer *http.Server

	// Perimeter
	headerPolicy *headers.Policy
	rateLimiter  ratelimit.Limiter
	rateCfg      ratelimit.Config
	extraMws     []Middleware

	mu      sync.Mutex
	started bool

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New assembles the serving layer from its three config sections.
func New(cfg Config, rateCfg ratelimit.Config, headerCfg headers.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &serverImpl{
		cfg:          cfg,
		logger:       logger.With("component", "server"),
		httpMux:      http.NewServeMux(),
		headerPolicy: headers.New(headerCfg),
		rateCfg:      rateCfg,
		shutdownCh:   make(chan struct{}),
	}

	// A nil limiter skips the admission middleware entirely.
	if rateCfg.Enabled {
		s.rateLimiter = ratelimit.NewSlidingWindowLimiter(rateCfg)
	}

	return s
}

// Start brings up the listener and blocks until it fails or ctx is
// canceled. Cancellation is the normal shutdown path and returns nil.
func (s *serverImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	s.initHTTPServer()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go s.runHTTPServer(errCh)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *serverImpl) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.httpServer != nil {
		s.logger.Info("Stopping HTTP server")
		if e := s.httpServer.Shutdown(ctx); e != nil {
			err = fmt.Errorf("http shutdown error: %w", e)
		}
	}

	// The limiter's cleanup goroutine outlives the listener otherwise.
	if stoppable, ok := s.rateLimiter.(ratelimit.Stoppable); ok {
		stoppable.Stop()
	}

	return err
}

func (s *serverImpl) RegisterHTTPHandler(pattern string, handler http.Handler) {
	s.httpMux.Handle(pattern, handler)
}

func (s *serverImpl) HTTPMux() *http.ServeMux {
	return s.httpMux
}

func (s *serverImpl) Use(mw Middleware) {
	s.extraMws = append(s.extraMws, mw)
}

func (s *serverImpl) RequestShutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutdown requested")
		close(s.shutdownCh)
	})
}

func (s *serverImpl) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}
