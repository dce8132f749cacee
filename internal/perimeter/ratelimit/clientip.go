package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP resolves the address a request is accounted to. Proxy
// headers win over the socket address: the first entry of
// X-Forwarded-For names the original client, then X-Real-IP, and only
// direct connections fall through to RemoteAddr. The result never
// carries a port, so every connection from one address shares one
// admission record.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
