package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Requests
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secureserve_http_requests_total",
		Help: "The total number of HTTP requests handled",
	}, []string{"method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "secureserve_http_request_duration_seconds",
		Help: "The latency of HTTP request handling",
	}, []string{"method"})

	// Admission
	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secureserve_ratelimit_rejections_total",
		Help: "The total number of requests rejected by the rate limiter",
	}, []string{"reason"})

	ClientsBanned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secureserve_clients_banned_total",
		Help: "The total number of clients promoted to the ban set",
	})

	// Filtering
	PathDenials = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secureserve_path_denials_total",
		Help: "The total number of requests denied by the path filter",
	})

	MalformedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "secureserve_malformed_requests_total",
		Help: "The total number of requests rejected during header sanitation",
	}, []string{"check"})

	// Lifecycle
	ShutdownRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "secureserve_shutdown_requests_total",
		Help: "The total number of shutdown requests received over HTTP",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(ClientsBanned)
	prometheus.MustRegister(PathDenials)
	prometheus.MustRegister(MalformedRequests)
	prometheus.MustRegister(ShutdownRequests)
}
