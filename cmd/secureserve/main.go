package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/browser"

	"secureserve/internal/config"
	"secureserve/internal/logging"
	"secureserve/internal/metrics"
	"secureserve/internal/server"
	"secureserve/internal/webapp"
)

func main() {
	// 0. Parse Command Line Flags
	configDir := flag.String("config", "config", "Configuration directory")
	rootDir := flag.String("root", "", "Web root override")
	port := flag.Int("port", 0, "HTTP port override")
	noBrowser := flag.Bool("no-browser", false, "Do not open a browser on startup")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override files and environment
	if *rootDir != "" {
		cfg.Webapp.Root = *rootDir
	}
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}
	if err := cfg.Server.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.Webapp.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Initialize Logging
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	// 3. Startup precondition: the web root must hold the index page, or
	// the server is running from the wrong directory and would expose it.
	indexPath := filepath.Join(cfg.Webapp.Root, cfg.Webapp.Index)
	if info, err := os.Stat(indexPath); err != nil || !info.Mode().IsRegular() {
		slog.Error("Index page not found, run the server from the project directory",
			"root", cfg.Webapp.Root,
			"index", cfg.Webapp.Index,
		)
		logging.Shutdown()
		os.Exit(1)
	}

	// 4. Initialize the serving layer and the web application
	server.InitDefault(cfg.Server, cfg.RateLimit, cfg.Headers, slog.Default())
	svc := server.Default()

	app := webapp.NewHandler(cfg.Webapp, cfg.PathFilter, svc.RequestShutdown, slog.Default())
	svc.Use(app.Perimeter)
	app.RegisterRoutes(svc.HTTPMux())

	metricsServer := metrics.NewServer(cfg.Metrics, slog.Default())
	metricsServer.Start()

	// 5. Start Serving
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start(context.Background())
	}()

	url := fmt.Sprintf("http://localhost:%d", cfg.Server.HTTPPort)
	printBanner(cfg, url)

	if !*noBrowser {
		// Best effort; headless hosts simply log the failure
		if err := browser.OpenURL(url); err != nil {
			slog.Warn("Failed to open browser", "error", err)
		}
	}

	// 6. Wait for a stop signal, an HTTP shutdown request, or a fatal error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal, stopping server", "signal", sig.String())
	case <-svc.ShutdownRequested():
		slog.Info("Shutdown requested over HTTP, stopping server")
	case err := <-errCh:
		slog.Error("Server failed", "error", err)
		exitCode = 1
	}

	// From here on a second signal terminates the process immediately
	signal.Stop(quit)

	// 7. Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		exitCode = 1
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("Failed to stop metrics server", "error", err)
	}

	slog.Info("Server stopped cleanly")
	logging.Shutdown()
	os.Exit(exitCode)
}

// printBanner logs the startup summary: where the server listens, what it
// serves, and which defenses are active.
func printBanner(cfg *config.Config, url string) {
	slog.Info("Secure static server starting",
		"port", cfg.Server.HTTPPort,
		"root", cfg.Webapp.Root,
	)
	slog.Info("Open your browser to", "url", url)
	slog.Info("Authentication is handled by the Puter.js widget, no local user database")

	if cfg.RateLimit.Enabled {
		slog.Info("Rate limiting enabled",
			"requests", cfg.RateLimit.Requests,
			"window", cfg.RateLimit.Window,
		)
	} else {
		slog.Info("Rate limiting disabled")
	}
	slog.Info("Path filtering enabled",
		"blocked_segments", len(cfg.PathFilter.BlockedSegments),
		"allowed_extensions", len(cfg.PathFilter.AllowedExtensions),
	)
	slog.Info("Security headers enabled", "server_token", cfg.Headers.ServerToken)
	slog.Info("Request size limit", "max_content_length", cfg.Webapp.MaxContentLength)
	slog.Info("Press Ctrl+C to stop the server")
}
