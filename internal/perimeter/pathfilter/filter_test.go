package pathfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFilter builds a filter over a throwaway web root populated with
// a representative mix of servable and non-servable files.
func newTestFilter(t *testing.T) *Filter {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"index.html":    "<html></html>",
		"style.css":     "body{}",
		"logo.png":      "png-bytes",
		"BANNER.JPG":    "jpg-bytes",
		"config.env":    "SECRET=1",
		"server.py":     "print('x')",
		"run.sh":        "#!/bin/sh",
		"notes":         "no extension",
		".secrets":      "hidden file",
		"assets/app.js": "console.log(1)",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return New(root, DefaultConfig())
}

func TestFilter_Check(t *testing.T) {
	f := newTestFilter(t)

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{"root", "/", true},
		{"empty path", "", true},
		{"slashes only", "///", true},
		{"index page", "/index.html", true},
		{"stylesheet", "/style.css", true},
		{"image", "/logo.png", true},
		{"nested script", "/assets/app.js", true},
		{"uppercase allowed extension", "/BANNER.JPG", true},
		{"missing file", "/missing.html", true},
		{"directory", "/assets", true},
		{"file without extension", "/notes", true},
		{"hidden file", "/.secrets", true},
		{"parent traversal", "/../etc/passwd", false},
		{"nested traversal", "/a/../../b", false},
		{"encoded traversal", "/%2e%2e/secret", false},
		{"env file extension", "/config.env", false},
		{"python source", "/server.py", false},
		{"shell script", "/run.sh", false},
		{"git segment", "/.git/config", false},
		{"env segment", "/.env", false},
		{"encoded env segment", "/%2eenv", false},
		{"pycache segment", "/app/__pycache__/mod.pyc", false},
		{"vscode segment", "/.vscode/settings.json", false},
		{"node modules segment", "/node_modules/pkg/index.js", false},
		{"undecodable escape", "/%zz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Check(tt.path)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, d.Reason, "denials must carry a reason for the log")
			}
		})
	}
}

func TestFilter_Check_DecodedPathReported(t *testing.T) {
	f := newTestFilter(t)

	d := f.Check("/%2e%2e/secret")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/../secret", d.DecodedPath)
}

func TestFilter_Check_BlockedSegmentIsExactMatch(t *testing.T) {
	f := newTestFilter(t)

	// Segment matching is exact: names merely containing a blocked string
	// are judged by the extension rules instead.
	assert.False(t, f.Check("/config.env").Allowed)
	assert.True(t, f.Check("/environment.html").Allowed)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Contains(t, cfg.BlockedSegments, "..")
	assert.Contains(t, cfg.BlockedSegments, "node_modules")
	assert.Contains(t, cfg.AllowedExtensions, ".html")
	assert.Contains(t, cfg.AllowedExtensions, ".woff2")

	// Explicit settings survive.
	custom := Config{BlockedSegments: []string{"private"}, AllowedExtensions: []string{".html"}}
	custom.ApplyDefaults()
	assert.Equal(t, []string{"private"}, custom.BlockedSegments)
	assert.Equal(t, []string{".html"}, custom.AllowedExtensions)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"empty segment", Config{BlockedSegments: []string{""}}, true},
		{"segment with slash", Config{BlockedSegments: []string{"a/b"}}, true},
		{"extension without dot", Config{AllowedExtensions: []string{"html"}}, true},
		{"bare dot extension", Config{AllowedExtensions: []string{"."}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
