// Package probe drives synthetic request load against a running server and
// reports how the perimeter treated it: how many requests were served, rate
// limited, or denied, which rejection codes came back, and how fast the
// answers were.
package probe

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates the outcomes of probe requests.
type Collector struct {
	startTime time.Time
	mu        sync.RWMutex

	// Outcome counts
	total  int64
	failed int64

	statusCounts     map[int]int64
	rejectionsByCode map[string]int64
	errorsByType     map[string]int64

	// Millisecond latencies, one entry per answered request.
	latencies    []int64
	minLatency   int64
	maxLatency   int64
	totalLatency int64
}

// NewCollector creates an empty collector. The throughput clock starts
// immediately.
func NewCollector() *Collector {
	return &Collector{
		startTime:        time.Now(),
		statusCounts:     make(map[int]int64),
		rejectionsByCode: make(map[string]int64),
		errorsByType:     make(map[string]int64),
		latencies:        make([]int64, 0, 4096),
	}
}

// Record stores the outcome of a single request. status is zero when the
// request never produced a response; code is the rejection code from the
// response body, when one was present.
func (c *Collector) Record(status int, code string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if err != nil {
		c.failed++
		c.errorsByType[err.Error()]++
		return
	}

	c.statusCounts[status]++
	if code != "" {
		c.rejectionsByCode[code]++
	}

	latencyMs := duration.Milliseconds()
	c.latencies = append(c.latencies, latencyMs)
	c.totalLatency += latencyMs

	if len(c.latencies) == 1 || latencyMs < c.minLatency {
		c.minLatency = latencyMs
	}
	if latencyMs > c.maxLatency {
		c.maxLatency = latencyMs
	}
}

// LatencyStats summarizes response times in milliseconds.
type LatencyStats struct {
	Min    int64
	Max    int64
	Mean   float64
	Median int64
	P90    int64
	P95    int64
	P99    int64
}

// Summary is the aggregated outcome of a probe run.
type Summary struct {
	Total       int64
	Served      int64 // 2xx and 3xx
	RateLimited int64 // 429
	Denied      int64 // 403
	NotFound    int64 // 404
	Other       int64 // remaining statuses
	Failed      int64 // no response at all

	StatusCounts     map[int]int64
	RejectionsByCode map[string]int64
	ErrorsByType     map[string]int64

	Throughput float64 // requests per second over the whole run
	Latency    LatencyStats
}

// Summarize returns the aggregated outcome so far.
func (c *Collector) Summarize() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Summary{
		Total:            c.total,
		Failed:           c.failed,
		StatusCounts:     make(map[int]int64, len(c.statusCounts)),
		RejectionsByCode: make(map[string]int64, len(c.rejectionsByCode)),
		ErrorsByType:     make(map[string]int64, len(c.errorsByType)),
	}

	for status, count := range c.statusCounts {
		s.StatusCounts[status] = count
		switch {
		case status >= 200 && status < 400:
			s.Served += count
		case status == 429:
			s.RateLimited += count
		case status == 403:
			s.Denied += count
		case status == 404:
			s.NotFound += count
		default:
			s.Other += count
		}
	}
	for code, count := range c.rejectionsByCode {
		s.RejectionsByCode[code] = count
	}
	for errType, count := range c.errorsByType {
		s.ErrorsByType[errType] = count
	}

	elapsed := time.Since(c.startTime).Seconds()
	if elapsed > 0 {
		s.Throughput = float64(c.total) / elapsed
	}

	if len(c.latencies) > 0 {
		sorted := make([]int64, len(c.latencies))
		copy(sorted, c.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		s.Latency = LatencyStats{
			Min:    c.minLatency,
			Max:    c.maxLatency,
			Mean:   float64(c.totalLatency) / float64(len(sorted)),
			Median: sorted[len(sorted)/2],
			P90:    sorted[int(float64(len(sorted))*0.90)],
			P95:    sorted[int(float64(len(sorted))*0.95)],
			P99:    sorted[int(float64(len(sorted))*0.99)],
		}
	}

	return s
}
