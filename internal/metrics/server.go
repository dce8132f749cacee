package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds Prometheus metrics configuration.
type Config struct {
	// Enabled controls whether the scrape endpoint is served at all.
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default metrics configuration. The endpoint is
// off unless configuration turns it on.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Port:    9090,
		Path:    "/metrics",
	}
}

// ApplyDefaults replaces zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.Path == "" {
		c.Path = defaults.Path
	}
}

// ApplyEnvOverrides lets environment variables replace loaded values.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SECURESERVE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Port = port
		}
	}
}

// ResolvePaths is a no-op; the scrape endpoint has no filesystem paths.
func (c *Config) ResolvePaths(_ string) {}

// Validate checks the section and reports the first problem.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535")
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// Server exposes the metrics registry on its own listener, kept off the
// public serving port.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a metrics server from the given configuration.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With("component", "metrics"),
	}
}

// Start begins serving the scrape endpoint in the background. It is a
// no-op when the endpoint is disabled.
func (s *Server) Start() {
	if !s.cfg.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, promhttp.Handler())
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting metrics server", "port", s.cfg.Port, "path", s.cfg.Path)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server error", "error", err)
		}
	}()
}

// Stop shuts the scrape endpoint down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.httpServer.Shutdown(ctx)
}
