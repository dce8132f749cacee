package probe

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.statusCounts)
	assert.NotNil(t, collector.rejectionsByCode)
	assert.NotNil(t, collector.errorsByType)
	assert.Equal(t, int64(0), collector.total)
}

func TestCollector_Record_Served(t *testing.T) {
	collector := NewCollector()

	collector.Record(200, "", 50*time.Millisecond, nil)

	s := collector.Summarize()
	assert.Equal(t, int64(1), s.Total)
	assert.Equal(t, int64(1), s.Served)
	assert.Equal(t, int64(0), s.Failed)
	assert.Equal(t, int64(50), s.Latency.Min)
	assert.Equal(t, int64(50), s.Latency.Max)
}

func TestCollector_Record_Outcomes(t *testing.T) {
	collector := NewCollector()

	collector.Record(200, "", time.Millisecond, nil)
	collector.Record(301, "", time.Millisecond, nil)
	collector.Record(429, "RATE_LIMITED", time.Millisecond, nil)
	collector.Record(429, "IP_BLOCKED", time.Millisecond, nil)
	collector.Record(403, "FORBIDDEN", time.Millisecond, nil)
	collector.Record(404, "NOT_FOUND", time.Millisecond, nil)
	collector.Record(405, "METHOD_NOT_ALLOWED", time.Millisecond, nil)

	s := collector.Summarize()
	assert.Equal(t, int64(7), s.Total)
	assert.Equal(t, int64(2), s.Served)
	assert.Equal(t, int64(2), s.RateLimited)
	assert.Equal(t, int64(1), s.Denied)
	assert.Equal(t, int64(1), s.NotFound)
	assert.Equal(t, int64(1), s.Other)

	assert.Equal(t, int64(1), s.RejectionsByCode["RATE_LIMITED"])
	assert.Equal(t, int64(1), s.RejectionsByCode["IP_BLOCKED"])
	assert.Equal(t, int64(2), s.StatusCounts[429])
}

func TestCollector_Record_Failure(t *testing.T) {
	collector := NewCollector()

	collector.Record(0, "", 30*time.Millisecond, errors.New("connection refused"))

	s := collector.Summarize()
	assert.Equal(t, int64(1), s.Total)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(0), s.Served)
	assert.Equal(t, int64(1), s.ErrorsByType["connection refused"])

	// Failures carry no latency sample
	assert.Equal(t, LatencyStats{}, s.Latency)
}

func TestCollector_LatencyPercentiles(t *testing.T) {
	collector := NewCollector()

	// 1ms..100ms, one sample each
	for i := 1; i <= 100; i++ {
		collector.Record(200, "", time.Duration(i)*time.Millisecond, nil)
	}

	s := collector.Summarize()
	assert.Equal(t, int64(1), s.Latency.Min)
	assert.Equal(t, int64(100), s.Latency.Max)
	assert.InDelta(t, 50.5, s.Latency.Mean, 0.01)
	assert.Equal(t, int64(51), s.Latency.Median)
	assert.Equal(t, int64(91), s.Latency.P90)
	assert.Equal(t, int64(96), s.Latency.P95)
	assert.Equal(t, int64(100), s.Latency.P99)
}

func TestCollector_Throughput(t *testing.T) {
	collector := NewCollector()

	for i := 0; i < 10; i++ {
		collector.Record(200, "", time.Millisecond, nil)
	}
	time.Sleep(10 * time.Millisecond)

	s := collector.Summarize()
	assert.Greater(t, s.Throughput, 0.0)
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.Record(200, "", time.Millisecond, nil)
			}
			collector.Record(0, "", 0, fmt.Errorf("worker %d failed", n))
		}(i)
	}
	wg.Wait()

	s := collector.Summarize()
	assert.Equal(t, int64(1010), s.Total)
	assert.Equal(t, int64(1000), s.Served)
	assert.Equal(t, int64(10), s.Failed)
	assert.Len(t, s.ErrorsByType, 10)
}
