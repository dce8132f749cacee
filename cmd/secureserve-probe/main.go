// Command secureserve-probe fires synthetic GET load at a running server
// and reports how the perimeter treated it. Pointed at a live instance it
// makes the rate limit visible from the outside: how many requests were
// served before throttling began, and whether the client ended up banned.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"secureserve/pkg/probe"
)

func main() {
	target := flag.String("target", "http://localhost:8000", "Base URL of the server under test")
	path := flag.String("path", "/", "Request path to fetch")
	requests := flag.Int("n", 100, "Total number of requests")
	concurrency := flag.Int("c", 4, "Number of parallel workers")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()

	runner, err := probe.NewRunner(probe.Config{
		Target:      *target,
		Path:        *path,
		Requests:    *requests,
		Concurrency: *concurrency,
		Timeout:     *timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Probing %s%s with %d requests (%d workers)\n", *target, *path, *requests, *concurrency)

	summary, err := runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printSummary(summary)

	if summary.Total > 0 && summary.Failed == summary.Total {
		os.Exit(1)
	}
}

func printSummary(s *probe.Summary) {
	fmt.Println()
	fmt.Println("Probe summary")
	fmt.Printf("  requests:     %d (failed: %d)\n", s.Total, s.Failed)
	fmt.Printf("  served:       %d\n", s.Served)
	fmt.Printf("  rate limited: %d\n", s.RateLimited)
	fmt.Printf("  denied:       %d\n", s.Denied)
	fmt.Printf("  not found:    %d\n", s.NotFound)
	if s.Other > 0 {
		fmt.Printf("  other:        %d\n", s.Other)
	}

	if len(s.RejectionsByCode) > 0 {
		fmt.Println("  rejection codes:")
		codes := make([]string, 0, len(s.RejectionsByCode))
		for code := range s.RejectionsByCode {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Printf("    %-20s %d\n", code, s.RejectionsByCode[code])
		}
	}

	if s.Total > s.Failed {
		fmt.Printf("  latency (ms): min=%d p50=%d p90=%d p99=%d max=%d\n",
			s.Latency.Min, s.Latency.Median, s.Latency.P90, s.Latency.P99, s.Latency.Max)
		fmt.Printf("  throughput:   %.1f req/s\n", s.Throughput)
	}

	if len(s.ErrorsByType) > 0 {
		fmt.Println("  errors:")
		errs := make([]string, 0, len(s.ErrorsByType))
		for e := range s.ErrorsByType {
			errs = append(errs, e)
		}
		sort.Strings(errs)
		for _, e := range errs {
			fmt.Printf("    %s (%d)\n", e, s.ErrorsByType[e])
		}
	}
}
