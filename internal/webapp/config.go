package webapp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the web application configuration.
type Config struct {
	// Root is the directory of static assets to serve.
	Root string `yaml:"root"`

	// Index is the file served for directory requests. A bare file name,
	// looked up per directory.
	Index string `yaml:"index"`

	// MaxContentLength caps the declared request body size, in bytes.
	MaxContentLength int64 `yaml:"max_content_length"`

	// MaxUserAgentLength caps the User-Agent header length, in bytes.
	MaxUserAgentLength int `yaml:"max_user_agent_length"`
}

// DefaultConfig returns the default web application configuration.
func DefaultConfig() Config {
	return Config{
		Root:               ".",
		Index:              "index.html",
		MaxContentLength:   10 << 20, // 10MB max request size
		MaxUserAgentLength: 500,
	}
}

// ApplyDefaults replaces zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Root == "" {
		c.Root = defaults.Root
	}
	if c.Index == "" {
		c.Index = defaults.Index
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = defaults.MaxContentLength
	}
	if c.MaxUserAgentLength == 0 {
		c.MaxUserAgentLength = defaults.MaxUserAgentLength
	}
}

// ApplyEnvOverrides lets environment variables replace loaded values.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SECURESERVE_ROOT"); val != "" {
		c.Root = val
	}
}

// ResolvePaths rewrites the web root against baseDir.
func (c *Config) ResolvePaths(baseDir string) {
	if c.Root != "" && !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(baseDir, c.Root)
	}
}

// Validate checks the section and reports the first problem.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("webapp.root must not be empty")
	}
	if c.Index == "" || strings.ContainsAny(c.Index, `/\`) {
		return fmt.Errorf("webapp.index must be a bare file name")
	}
	if c.MaxContentLength < 0 {
		return fmt.Errorf("webapp.max_content_length must not be negative")
	}
	if c.MaxUserAgentLength < 0 {
		return fmt.Errorf("webapp.max_user_agent_length must not be negative")
	}
	return nil
}
