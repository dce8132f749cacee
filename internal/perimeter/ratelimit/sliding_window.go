package ratelimit

import (
	"sync"
	"time"
)

// slidingWindowLimiter implements Limiter with an in-memory sliding window.
// Each key owns an ordered slice of admission timestamps; the slice is
// pruned to the window on every check, so memory per key is bounded by the
// request limit. A key that exceeds the limit once moves to the ban set,
// which is never pruned: the ban lasts until the process exits.
type slidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	banned  map[string]struct{}
	config  Config

	exempt *netSet
	denied *netSet

	// For lazy cleanup of keys whose windows have emptied
	cleanupT *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSlidingWindowLimiter creates a new in-memory sliding window limiter.
func NewSlidingWindowLimiter(cfg Config) Limiter {
	l := &slidingWindowLimiter{
		windows: make(map[string][]time.Time),
		banned:  make(map[string]struct{}),
		config:  cfg,
		exempt:  newNetSet(cfg.ExemptNetworks),
		denied:  newNetSet(cfg.DeniedNetworks),
		stopCh:  make(chan struct{}),
	}

	// Drop window slices for keys that have gone quiet. Ban entries are
	// deliberately excluded: membership is permanent.
	window := cfg.Window
	if window <= 0 {
		window = DefaultConfig().Window
	}
	l.cleanupT = time.NewTicker(window * 2)
	go l.cleanup()

	return l
}

// Admit checks if a request from the given key should be allowed.
func (l *slidingWindowLimiter) Admit(key string) Decision {
	return l.admit(key, time.Now())
}

// admit is the clock-explicit core of Admit. The whole sequence
// (ban check, prune, append, promote) runs under one lock so concurrent
// requests for the same key cannot lose updates or double-count.
func (l *slidingWindowLimiter) admit(key string, now time.Time) Decision {
	if !l.config.Enabled {
		return Decision{Allowed: true}
	}
	if l.exempt.contains(key) {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, isBanned := l.banned[key]; isBanned {
		return Decision{Banned: true}
	}
	if l.denied.contains(key) {
		// Memoize so later checks stay on the map fast path.
		l.banned[key] = struct{}{}
		return Decision{Banned: true}
	}

	cutoff := now.Add(-l.config.Window)
	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.windows[key] = kept

	if len(kept) > l.config.Requests {
		l.banned[key] = struct{}{}
		return Decision{NewlyBanned: true}
	}

	return Decision{Allowed: true}
}

// Reset clears the request window and any ban for the given key.
func (l *slidingWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	delete(l.banned, key)
}

// cleanup periodically removes empty windows to prevent memory growth from
// one-off clients.
func (l *slidingWindowLimiter) cleanup() {
	for {
		select {
		case <-l.cleanupT.C:
			l.cleanupStale(time.Now())
		case <-l.stopCh:
			l.cleanupT.Stop()
			return
		}
	}
}

// cleanupStale removes keys whose every timestamp has left the window.
func (l *slidingWindowLimiter) cleanupStale(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.config.Window)
	for key, window := range l.windows {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}

// Stop ends the background sweeper. Calling it again is a no-op, and
// Admit keeps working afterwards.
func (l *slidingWindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Stoppable is implemented by limiters that own a background goroutine.
type Stoppable interface {
	Limiter
	Stop()
}

var _ Stoppable = (*slidingWindowLimiter)(nil)
