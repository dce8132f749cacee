package server

import (
	"log/slog"

	"secureserve/internal/perimeter/headers"
	"secureserve/internal/perimeter/ratelimit"
)

// defaultService is the process-wide server set up by InitDefault.
var defaultService Service

// InitDefault builds the process-wide server instance. Call it once at
// startup, before any route registration.
func InitDefault(cfg Config, rateCfg ratelimit.Config, headerCfg headers.Config, logger *slog.Logger) {
	defaultService = New(cfg, rateCfg, headerCfg, logger)
}

// Default returns the server built by InitDefault, or nil before it.
func Default() Service {
	return defaultService
}

// SetDefault replaces the process-wide server. Tests use this to swap
// in a stub.
func SetDefault(s Service) {
	defaultService = s
}
