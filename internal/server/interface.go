package server

import (
	"context"
	"net/http"
)

// Service is the serving layer: one HTTP listener behind the perimeter
// middleware chain.
type Service interface {
	// Start brings up the listener and blocks until a fatal error or
	// until ctx is canceled. Cancellation is the normal shutdown path.
	Start(ctx context.Context) error

	// Stop drains active connections, bounded by ctx.
	Stop(ctx context.Context) error

	// RegisterHTTPHandler binds a handler to a mux pattern. Routes must
	// be in place before Start.
	RegisterHTTPHandler(pattern string, handler http.Handler)

	// HTTPMux exposes the mux for bulk route registration. Routes must
	// be in place before Start.
	HTTPMux() *http.ServeMux

	// Use appends a middleware between the built-in chain and the route
	// handlers. Middlewares run in the order added, after admission
	// control and before routing, and must be registered before Start.
	Use(mw Middleware)

	// RequestShutdown asks the process to stop. The listener keeps serving
	// until the owner observes ShutdownRequested and calls Stop, so the
	// response that triggered the request can finish. Safe to call any
	// number of times.
	RequestShutdown()

	// ShutdownRequested returns a channel that is closed once a shutdown
	// has been requested.
	ShutdownRequested() <-chan struct{}
}
