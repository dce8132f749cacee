package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"secureserve/internal/metrics"
	"secureserve/internal/perimeter/headers"
	"secureserve/internal/perimeter/pathfilter"
	"secureserve/internal/perimeter/ratelimit"
	"secureserve/internal/server"
	"secureserve/internal/webapp"
)

// Config aggregates every section of the server configuration.
type Config struct {
	Server server.Config `yaml:"server"`
	Webapp webapp.Config `yaml:"webapp"`

	// Perimeter
	RateLimit  ratelimit.Config  `yaml:"rate_limit"`
	PathFilter pathfilter.Config `yaml:"path_filter"`
	Headers    headers.Config    `yaml:"headers"`

	// Observability
	Metrics metrics.Config `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

// Load builds the configuration from configDir. Values layer in a fixed
// order: built-in defaults, config.yml, config.local.yml, environment
// overrides, with validation last.
func Load(configDir string) (*Config, error) {
	// Defaults come first so the YAML layers can override bool fields.
	cfg := &Config{
		Server:     server.DefaultConfig(),
		Webapp:     webapp.DefaultConfig(),
		RateLimit:  ratelimit.DefaultConfig(),
		PathFilter: pathfilter.DefaultConfig(),
		Headers:    headers.DefaultConfig(),
		Metrics:    metrics.DefaultConfig(),
		Logging:    DefaultLoggingConfig(),
	}

	loadFile(filepath.Join(configDir, "config.yml"), cfg)
	// The local file carries per-machine overrides and stays out of
	// version control.
	loadFile(filepath.Join(configDir, "config.local.yml"), cfg)

	// Relative paths resolve against the parent of the config directory,
	// so logs/ and the web root end up next to config/, not inside it.
	baseDir := filepath.Dir(configDir)
	if err := ApplyServiceConfigs(baseDir,
		&cfg.Server,
		&cfg.Webapp,
		&cfg.RateLimit,
		&cfg.PathFilter,
		&cfg.Headers,
		&cfg.Metrics,
		&cfg.Logging,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

// loadFile merges one YAML file into cfg. A missing file is normal; an
// unreadable or malformed one is reported and skipped so a bad override
// cannot keep the server from starting.
func loadFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("Warning: config file %s unreadable: %v", path, err)
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("Warning: config file %s malformed: %v", path, err)
	}
}
