package server

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"secureserve/internal/metrics"
	"secureserve/internal/perimeter/ratelimit"
)

// requestIDKey is the context key for the request id. A private struct
// type cannot collide with keys from other packages.
type requestIDKey struct{}

// APIError is the JSON body carried by every rejection and failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError emits the fixed JSON error shape shared by all rejections.
func writeError(w http.ResponseWriter, status int, code, message string) {
	body, _ := json.Marshal(APIError{Code: code, Message: message})
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Debug("Error response write failed", "error", err)
	}
}

// GetRequestID returns the request id bound by the middleware chain,
// or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware listed is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *serverImpl) wrapMiddleware(h http.Handler) http.Handler {
	mws := []Middleware{
		s.recoveryMiddleware,
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.metricsMiddleware,
		s.headerPolicy.Middleware,
	}
	// Admission control sits inside the header policy so rejections still
	// carry the full header set.
	if s.rateLimiter != nil {
		mws = append(mws, s.rateLimitMiddleware)
	}
	// Registered middlewares run after admission, before routing.
	mws = append(mws, s.extraMws...)
	return Chain(h, mws...)
}

func (s *serverImpl) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			s.logger.Error("Panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"error", v,
				"stack", string(debug.Stack()),
				"request_id", GetRequestID(r.Context()),
			)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal Server Error")
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *serverImpl) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A caller-supplied id is kept so retries correlate across hops.
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logLevelFor picks the log level for a completed request. Perimeter
// rejections log at warn so they reach the security channel.
func logLevelFor(status int, r *http.Request) slog.Level {
	switch {
	case status >= 500:
		if r.Context().Err() != nil {
			return slog.LevelWarn
		}
		return slog.LevelError
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (s *serverImpl) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Log(r.Context(), logLevelFor(rec.status, r), "HTTP Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(r.Context()),
			"ip", ratelimit.GetClientIP(r),
		)
	})
}

func (s *serverImpl) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// rateLimitMiddleware applies admission control based on client IP. Every
// method passes through here before any route handler runs.
func (s *serverImpl) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.GetClientIP(r)

		d := s.rateLimiter.Admit(key)
		switch {
		case d.Allowed:
			next.ServeHTTP(w, r)

		case d.NewlyBanned:
			s.logger.Warn("SECURITY: Rate limit exceeded, client banned",
				"ip", key,
				"request_id", GetRequestID(r.Context()),
			)
			metrics.ClientsBanned.Inc()
			metrics.RateLimitRejections.WithLabelValues("exceeded").Inc()
			w.Header().Set("Retry-After", strconv.FormatInt(int64(s.rateCfg.Window.Seconds()), 10))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too Many Requests")

		default:
			metrics.RateLimitRejections.WithLabelValues("banned").Inc()
			writeError(w, http.StatusTooManyRequests, "IP_BLOCKED", "Too Many Requests - IP Blocked")
		}
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
// Hijack and Flush pass through for handlers that type-assert on the
// writer; Unwrap supports http.ResponseController.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
