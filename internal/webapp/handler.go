// Package webapp implements the public HTTP surface of the server: static
// asset delivery behind the perimeter checks, plus the shutdown control
// endpoint. Admission control and the response header policy wrap this
// package from the serving layer.
package webapp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"secureserve/internal/metrics"
	"secureserve/internal/perimeter/pathfilter"
	"secureserve/internal/perimeter/ratelimit"
	"secureserve/internal/server"
)

const shutdownPath = "/shutdown"

// APIError is the JSON rejection body for the public routes.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// publicResponses maps externally visible status codes to the fixed
// phrases clients may see. All diagnostic detail stays in the log.
var publicResponses = map[int]APIError{
	http.StatusForbidden:           {Code: ErrCodeForbidden, Message: "Forbidden"},
	http.StatusNotFound:            {Code: ErrCodeNotFound, Message: "Not Found"},
	http.StatusMethodNotAllowed:    {Code: ErrCodeMethodNotAllowed, Message: "Method Not Allowed"},
	http.StatusInternalServerError: {Code: ErrCodeInternalError, Message: "Internal Server Error"},
}

// writeError emits one fixed-shape JSON rejection.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{Code: code, Message: message}); err != nil {
		slog.Warn("Failed to encode error response", "error", err)
	}
}

// writeStatus writes the fixed public response for a status code.
func writeStatus(w http.ResponseWriter, status int) {
	if resp, ok := publicResponses[status]; ok {
		writeError(w, status, resp.Code, resp.Message)
		return
	}
	writeError(w, status, ErrCodeBadRequest, http.StatusText(status))
}

// Handler serves the static asset routes and the shutdown control endpoint.
type Handler struct {
	cfg      Config
	logger   *slog.Logger
	filter   *pathfilter.Filter
	files    http.Handler
	shutdown func()
}

// NewHandler creates the web application handler. The shutdown function is
// invoked, after the response has been written, when a client requests
// termination over HTTP.
func NewHandler(cfg Config, filterCfg pathfilter.Config, shutdown func(), logger *slog.Logger) *Handler {
	if shutdown == nil {
		panic("shutdown trigger cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Index == "" {
		cfg.Index = DefaultConfig().Index
	}

	return &Handler{
		cfg:      cfg,
		logger:   logger.With("component", "webapp"),
		filter:   pathfilter.New(cfg.Root, filterCfg),
		files:    http.FileServer(noListingFS{http.Dir(cfg.Root), cfg.Index}),
		shutdown: shutdown,
	}
}

// RegisterRoutes registers the public routes.
// Note: Request ID, panic recovery, response headers and admission control
// are handled by the unified server middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+shutdownPath, h.handleShutdown)
	mux.HandleFunc("GET /", h.handleStatic)
	mux.HandleFunc("POST /", h.handlePost)
	mux.HandleFunc("OPTIONS /", h.handleOptions)
}

// Perimeter enforces the pre-route checks: request sanitation for every
// method except preflight, then path safety for resource fetches. It must
// run before the mux so traversal attempts are judged on the wire form of
// the path rather than the mux's canonicalized one.
func (h *Handler) Perimeter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !h.sanitize(w, r) {
			return
		}

		isFetch := r.Method == http.MethodGet || r.Method == http.MethodHead
		isControl := r.Method == http.MethodGet && r.URL.Path == shutdownPath
		if isFetch && !isControl {
			if d := h.filter.Check(r.URL.EscapedPath()); !d.Allowed {
				h.logger.Warn("SECURITY: Blocked unsafe path access",
					"path", r.URL.EscapedPath(),
					"decoded_path", d.DecodedPath,
					"reason", d.Reason,
					"ip", ratelimit.GetClientIP(r),
					"request_id", server.GetRequestID(r.Context()),
				)
				metrics.PathDenials.Inc()
				writeStatus(w, http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// sanitize validates request framing: a parseable, bounded Content-Length
// and a bounded User-Agent. The standard library enforces some of this on
// real connections already; the explicit check keeps the limits
// configuration-driven and uniform.
func (h *Handler) sanitize(w http.ResponseWriter, r *http.Request) bool {
	if raw := r.Header.Get("Content-Length"); raw != "" {
		length, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || length < 0 {
			h.logger.Warn("Rejected malformed request",
				"check", "content_length",
				"content_length", raw,
				"ip", ratelimit.GetClientIP(r),
			)
			metrics.MalformedRequests.WithLabelValues("content_length").Inc()
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid Content-Length")
			return false
		}
		if length > h.cfg.MaxContentLength {
			h.logger.Warn("Rejected oversized request",
				"check", "content_length",
				"content_length", length,
				"limit", h.cfg.MaxContentLength,
				"ip", ratelimit.GetClientIP(r),
			)
			metrics.MalformedRequests.WithLabelValues("content_length").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Request entity too large")
			return false
		}
	}

	if len(r.Header.Get("User-Agent")) > h.cfg.MaxUserAgentLength {
		h.logger.Warn("Rejected malformed request",
			"check", "user_agent",
			"user_agent_length", len(r.Header.Get("User-Agent")),
			"limit", h.cfg.MaxUserAgentLength,
			"ip", ratelimit.GetClientIP(r),
		)
		metrics.MalformedRequests.WithLabelValues("user_agent").Inc()
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid User-Agent")
		return false
	}

	return true
}

// handleStatic delegates to the file server. Error bodies the collaborator
// produces are replaced with the fixed public responses.
func (h *Handler) handleStatic(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(&errorInterceptor{ResponseWriter: w}, r)
}

// handleShutdown acknowledges the request, flushes the response, and then
// asks the server owner to stop. The listener keeps running until the
// owner observes the request, so the acknowledgement always reaches the
// client first.
func (h *Handler) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		// A probe, not a control command.
		h.handleStatic(w, r)
		return
	}

	h.logger.Info("Received shutdown request",
		"ip", ratelimit.GetClientIP(r),
		"request_id", server.GetRequestID(r.Context()),
	)
	metrics.ShutdownRequests.Inc()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Shutting down server...")); err != nil {
		h.logger.Warn("Failed to write shutdown response", "error", err)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.shutdown()
}

// handlePost rejects all POST requests: the server hosts static content
// only and never accepts form submissions.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusMethodNotAllowed)
}

// handleOptions answers CORS preflight. The header policy middleware has
// already attached the allow set.
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
