package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config describes a probe run.
type Config struct {
	// Target is the base URL of the server under test.
	Target string

	// Path is the request path to fetch.
	Path string

	// Requests is the total number of requests to issue.
	Requests int

	// Concurrency is the number of parallel workers.
	Concurrency int

	// Timeout bounds each individual request.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/"
	}
	if c.Requests == 0 {
		c.Requests = 100
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate returns an error if the configuration is unusable.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("probe: target is required")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("probe: path must start with /")
	}
	if c.Requests < 1 {
		return fmt.Errorf("probe: requests must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("probe: concurrency must be positive")
	}
	return nil
}

// Runner issues the probe load and collects the outcomes.
type Runner struct {
	cfg       Config
	client    *http.Client
	collector *Collector
}

// NewRunner creates a runner for the given configuration.
func NewRunner(cfg Config) (*Runner, error) {
	cfg.applyDefaults()
	cfg.Target = strings.TrimSuffix(cfg.Target, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Runner{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects count as outcomes in their own right
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		collector: NewCollector(),
	}, nil
}

// Run issues the configured number of requests and returns the summary.
// Canceling the context stops the run early; the summary then covers the
// requests issued up to that point.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	var next atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if next.Add(1) > int64(r.cfg.Requests) {
					return
				}
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.fetch(ctx)
			}
		}()
	}

	wg.Wait()
	return r.collector.Summarize(), nil
}

// errorBody is the rejection shape the server sends for denied requests.
type errorBody struct {
	Code string `json:"code"`
}

// fetch issues one request and records its outcome.
func (r *Runner) fetch(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.cfg.Target+r.cfg.Path, nil)
	if err != nil {
		r.collector.Record(0, "", 0, err)
		return
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		r.collector.Record(0, "", elapsed, err)
		return
	}
	defer resp.Body.Close()

	code := ""
	if resp.StatusCode >= 400 {
		// Rejections carry a structured body with a machine code, which
		// distinguishes throttling from a standing ban
		var body errorBody
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			if json.Unmarshal(data, &body) == nil {
				code = body.Code
			}
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	r.collector.Record(resp.StatusCode, code, elapsed, nil)
}
