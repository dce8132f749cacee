// Package pathfilter validates requested resource paths before any file
// access happens: percent-decoding, traversal defense, a blocked-segment
// set, and an extension allowlist for files that exist on disk.
package pathfilter

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Decision is the outcome of evaluating one requested path.
type Decision struct {
	// Allowed reports whether the path may be handed to the file server.
	Allowed bool

	// DecodedPath is the percent-decoded form the checks ran against.
	// Denials are logged with both the raw and the decoded path.
	DecodedPath string

	// Reason explains a denial for the operational log. It is never sent
	// to clients.
	Reason string
}

// Config holds the path filtering rules.
type Config struct {
	// BlockedSegments lists path segments that are denied wherever they
	// appear in a request path.
	BlockedSegments []string `yaml:"blocked_segments"`

	// AllowedExtensions lists the file extensions that may be served.
	// An existing file with any other non-empty extension is denied.
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DefaultConfig returns the default filtering rules.
func DefaultConfig() Config {
	return Config{
		BlockedSegments: []string{
			"..", ".env", ".git", "__pycache__", ".vscode", "node_modules",
		},
		AllowedExtensions: []string{
			".html", ".js", ".css", ".json", ".txt", ".ico", ".svg",
			".png", ".jpg", ".jpeg", ".gif", ".woff", ".woff2", ".ttf", ".eot",
		},
	}
}

// ApplyDefaults replaces zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if len(c.BlockedSegments) == 0 {
		c.BlockedSegments = defaults.BlockedSegments
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = defaults.AllowedExtensions
	}
}

// ApplyEnvOverrides lets environment variables replace loaded values.
func (c *Config) ApplyEnvOverrides() {}

// ResolvePaths is a no-op; filtering rules carry no filesystem paths.
func (c *Config) ResolvePaths(_ string) {}

// Validate checks the section and reports the first problem.
func (c *Config) Validate() error {
	for _, seg := range c.BlockedSegments {
		if seg == "" || strings.Contains(seg, "/") {
			return fmt.Errorf("pathfilter.blocked_segments: invalid segment %q", seg)
		}
	}
	for _, ext := range c.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("pathfilter.allowed_extensions: %q must be a dotted extension", ext)
		}
	}
	return nil
}

// Filter evaluates request paths against the configured rules for one
// web root.
type Filter struct {
	root       string
	blocked    map[string]struct{}
	extensions map[string]struct{}
}

// New creates a Filter serving files from the given web root directory.
func New(root string, cfg Config) *Filter {
	f := &Filter{
		root:       root,
		blocked:    make(map[string]struct{}, len(cfg.BlockedSegments)),
		extensions: make(map[string]struct{}, len(cfg.AllowedExtensions)),
	}
	for _, seg := range cfg.BlockedSegments {
		f.blocked[seg] = struct{}{}
	}
	for _, ext := range cfg.AllowedExtensions {
		f.extensions[strings.ToLower(ext)] = struct{}{}
	}
	return f
}

// Check evaluates a raw request path. The path is percent-decoded before
// any rule runs, so encoded traversal cannot slip past the checks below.
func (f *Filter) Check(rawPath string) Decision {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return Decision{DecodedPath: rawPath, Reason: "undecodable percent-escape"}
	}

	if strings.Trim(decoded, "/") == "" {
		return Decision{Allowed: true, DecodedPath: decoded}
	}

	for _, segment := range strings.Split(strings.TrimPrefix(decoded, "/"), "/") {
		if _, ok := f.blocked[segment]; ok {
			return Decision{DecodedPath: decoded, Reason: fmt.Sprintf("blocked segment %q", segment)}
		}
		// Independent of the configured set: parent references never pass.
		if segment == ".." {
			return Decision{DecodedPath: decoded, Reason: "parent directory traversal"}
		}
	}

	if reason := f.checkExtension(decoded); reason != "" {
		return Decision{DecodedPath: decoded, Reason: reason}
	}

	return Decision{Allowed: true, DecodedPath: decoded}
}

// checkExtension denies existing regular files whose extension is not in
// the allowlist. Paths that do not resolve to a file fall through: the
// file server owns the not-found outcome. Filesystem errors other than
// absence deny.
func (f *Filter) checkExtension(decoded string) string {
	full := filepath.Join(f.root, filepath.FromSlash(path.Clean("/"+decoded)))
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		return "unreadable path"
	}
	if !info.Mode().IsRegular() {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(info.Name()))
	// A name that is nothing but its dot prefix is a hidden file, not a
	// file with an extension.
	if ext == "" || ext == strings.ToLower(info.Name()) {
		return ""
	}
	if _, ok := f.extensions[ext]; !ok {
		return fmt.Sprintf("extension %q not allowed", ext)
	}
	return ""
}
