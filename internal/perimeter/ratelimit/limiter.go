// Package ratelimit provides per-client admission control for the server
// perimeter: a sliding window of request timestamps per client, with
// permanent promotion to a ban set once a client exceeds the limit.
package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Banned is set when the client was already banned before this check.
	Banned bool

	// NewlyBanned is set when this check pushed the client over the limit
	// and inserted it into the ban set.
	NewlyBanned bool
}

// Limiter defines the interface for admission control implementations.
type Limiter interface {
	// Admit checks if a request from the given key should be allowed.
	Admit(key string) Decision

	// Reset clears the request window and any ban for the given key.
	// Nothing in the request path calls this; it exists for operators
	// and tests. Bans are otherwise permanent for the process lifetime.
	Reset(key string)
}

// Config holds the configuration for admission control.
type Config struct {
	// Enabled controls whether admission control is active.
	Enabled bool `yaml:"enabled"`

	// Requests caps how many requests one client may make per window.
	// A client exceeding it is banned until the process exits.
	Requests int `yaml:"requests"`

	// Window is the duration of the sliding window.
	Window time.Duration `yaml:"window"`

	// ExemptNetworks lists addresses or CIDR blocks that bypass admission
	// control entirely (loopback health checks, monitoring probes).
	ExemptNetworks []string `yaml:"exempt_networks"`

	// DeniedNetworks lists addresses or CIDR blocks treated as banned
	// from startup.
	DeniedNetworks []string `yaml:"denied_networks"`
}

// DefaultConfig returns the default admission configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Requests: 100,
		Window:   time.Minute,
	}
}

// ApplyDefaults replaces zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Requests == 0 {
		c.Requests = defaults.Requests
	}
	if c.Window == 0 {
		c.Window = defaults.Window
	}
}

// ApplyEnvOverrides lets environment variables replace loaded values.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SECURESERVE_RATE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Requests = n
		}
	}
}

// ResolvePaths is a no-op; admission control has no path fields.
func (c *Config) ResolvePaths(_ string) {}

// Validate checks the section and reports the first problem.
func (c *Config) Validate() error {
	if c.Requests < 0 {
		return fmt.Errorf("ratelimit.requests must not be negative")
	}
	if c.Window < 0 {
		return fmt.Errorf("ratelimit.window must not be negative")
	}
	for _, cidr := range c.ExemptNetworks {
		if !validNetwork(cidr) {
			return fmt.Errorf("ratelimit.exempt_networks: invalid address or CIDR %q", cidr)
		}
	}
	for _, cidr := range c.DeniedNetworks {
		if !validNetwork(cidr) {
			return fmt.Errorf("ratelimit.denied_networks: invalid address or CIDR %q", cidr)
		}
	}
	return nil
}
