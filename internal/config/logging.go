package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoggingConfig holds the logging pipeline configuration: one console
// channel, one application log file, and an optional security channel fed
// from the same records.
type LoggingConfig struct {
	Level    string            `yaml:"level"`  // debug, info, warn, error
	Format   string            `yaml:"format"` // text, json
	Dir      string            `yaml:"dir"`
	Rotation RotationConfig    `yaml:"rotation"`
	Console  ConsoleConfig     `yaml:"console"`
	File     FileConfig        `yaml:"file"`
	Security SecurityLogConfig `yaml:"security"`
}

// RotationConfig bounds how large and how old rotated log files may grow.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // megabytes before rollover
	MaxBackups int  `yaml:"max_backups"` // rotated files kept
	MaxAge     int  `yaml:"max_age"`     // days before deletion
	Compress   bool `yaml:"compress"`    // gzip rotated files
}

// ConsoleConfig is the stdout channel.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // empty inherits the top level
	Format  string `yaml:"format"` // empty inherits the top level
}

// FileConfig is the application log file channel.
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // empty inherits the top level
	Format  string `yaml:"format"` // empty inherits the top level
	Async   bool   `yaml:"async"`  // buffer writes through a background goroutine
}

// SecurityLogConfig holds the dedicated security channel configuration.
// The channel receives warn+ records only, so ban and block events end up
// in one file an operator can tail.
type SecurityLogConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dedup collapses records that differ only in timestamp before they
	// hit the file. A scanner hammering one blocked path produces one
	// line with a repeat count instead of thousands.
	Dedup bool `yaml:"dedup"`
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Console: ConsoleConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		File: FileConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Security: SecurityLogConfig{
			Enabled: true,
			Dedup:   true,
		},
	}
}

// ApplyDefaults replaces zero values with defaults. Channel levels and
// formats inherit the top-level ones when unset.
func (c *LoggingConfig) ApplyDefaults() {
	defaults := DefaultLoggingConfig()
	if c.Level == "" {
		c.Level = defaults.Level
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.Dir == "" {
		c.Dir = defaults.Dir
	}
	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = defaults.Rotation.MaxSize
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = defaults.Rotation.MaxBackups
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = defaults.Rotation.MaxAge
	}
	// Rotation.Compress stays as written: false is indistinguishable from
	// unset, so the production default only comes from DefaultLoggingConfig.

	// A channel left entirely unconfigured is enabled. Disabling one
	// explicitly requires enabled: false next to a level or format.
	if !c.Console.Enabled && c.Console.Level == "" && c.Console.Format == "" {
		c.Console.Enabled = true
	}
	if c.Console.Level == "" {
		c.Console.Level = c.Level
	}
	if c.Console.Format == "" {
		c.Console.Format = c.Format
	}

	if !c.File.Enabled && c.File.Level == "" && c.File.Format == "" {
		c.File.Enabled = true
	}
	if c.File.Level == "" {
		c.File.Level = c.Level
	}
	if c.File.Format == "" {
		c.File.Format = c.Format
	}
}

// ApplyEnvOverrides lets environment variables replace loaded values. A level
// override applies to every channel so the environment wins over channel
// overrides from the file.
func (c *LoggingConfig) ApplyEnvOverrides() {
	if val := os.Getenv("SECURESERVE_LOG_LEVEL"); val != "" {
		c.Level = val
		c.Console.Level = val
		c.File.Level = val
	}
	if val := os.Getenv("SECURESERVE_LOG_DIR"); val != "" {
		c.Dir = val
	}
}

// ResolvePaths rewrites the log directory against baseDir.
func (c *LoggingConfig) ResolvePaths(baseDir string) {
	if c.Dir != "" && !filepath.IsAbs(c.Dir) {
		c.Dir = filepath.Clean(filepath.Join(baseDir, c.Dir))
	}
}

func validLogLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func validLogFormat(s string) bool {
	return s == "text" || s == "json"
}

// Validate checks the section and reports the first problem.
func (c *LoggingConfig) Validate() error {
	if !validLogLevel(c.Level) {
		return fmt.Errorf("logging.level: %q is not one of debug, info, warn, error", c.Level)
	}
	if !validLogFormat(c.Format) {
		return fmt.Errorf("logging.format: %q is not text or json", c.Format)
	}
	if c.Dir == "" {
		return fmt.Errorf("logging.dir must not be empty")
	}
	if c.Rotation.MaxSize < 0 || c.Rotation.MaxBackups < 0 || c.Rotation.MaxAge < 0 {
		return fmt.Errorf("logging.rotation values must not be negative")
	}

	if c.Console.Enabled {
		if c.Console.Level != "" && !validLogLevel(c.Console.Level) {
			return fmt.Errorf("logging.console.level: %q is not a valid level", c.Console.Level)
		}
		if c.Console.Format != "" && !validLogFormat(c.Console.Format) {
			return fmt.Errorf("logging.console.format: %q is not text or json", c.Console.Format)
		}
	}
	if c.File.Enabled {
		if c.File.Level != "" && !validLogLevel(c.File.Level) {
			return fmt.Errorf("logging.file.level: %q is not a valid level", c.File.Level)
		}
		if c.File.Format != "" && !validLogFormat(c.File.Format) {
			return fmt.Errorf("logging.file.format: %q is not text or json", c.File.Format)
		}
	}

	// The security channel writes to a file; without file output it has
	// nowhere to go.
	if c.Security.Enabled && !c.File.Enabled {
		return fmt.Errorf("logging.security requires file logging")
	}
	return nil
}
