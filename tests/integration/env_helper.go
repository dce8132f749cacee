// Package integration boots the full server on a real TCP listener and
// exercises it the way a browser or a load generator would: raw requests,
// observed status codes, headers and bodies.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureserve/internal/perimeter/headers"
	"secureserve/internal/perimeter/pathfilter"
	"secureserve/internal/perimeter/ratelimit"
	"secureserve/internal/server"
	"secureserve/internal/webapp"
)

// EnvConfig collects the configuration sections a test can reshape before
// the server boots.
type EnvConfig struct {
	Server     server.Config
	Webapp     webapp.Config
	RateLimit  ratelimit.Config
	PathFilter pathfilter.Config
	Headers    headers.Config
}

// ServerEnv is one running server instance over a throwaway web root.
type ServerEnv struct {
	URL     string
	Root    string
	Service server.Service

	// Cancel stops the server. It is registered as test cleanup and safe
	// to call more than once.
	Cancel func()
}

// defaultWebRoot returns the files seeded into every environment unless a
// test writes its own.
func defaultWebRoot() map[string]string {
	return map[string]string{
		"index.html":     "<!DOCTYPE html>\n<html><head><title>home</title></head><body>welcome</body></html>\n",
		"style.css":      "body { margin: 0; }\n",
		"app.js":         "console.log(\"ready\");\n",
		"logo.png":       "\x89PNG\r\n\x1a\nstub",
		"server.py":      "print(\"not served\")\n",
		"notes.md":       "# internal notes\n",
		"docs/guide.txt": "quick start\n",
	}
}

// WriteWebRoot writes the given files under root, creating parent
// directories as needed.
func WriteWebRoot(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// setupServerEnv boots a server on a free port with default configuration,
// applies the given modifiers, and waits until the listener answers.
func setupServerEnv(t *testing.T, modifiers ...func(*EnvConfig)) *ServerEnv {
	t.Helper()

	root := t.TempDir()
	WriteWebRoot(t, root, defaultWebRoot())

	cfg := EnvConfig{
		Server:     server.DefaultConfig(),
		Webapp:     webapp.DefaultConfig(),
		RateLimit:  ratelimit.DefaultConfig(),
		PathFilter: pathfilter.DefaultConfig(),
		Headers:    headers.DefaultConfig(),
	}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.HTTPPort = getFreePort(t)
	cfg.Webapp.Root = root

	for _, modify := range modifiers {
		modify(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := server.New(cfg.Server, cfg.RateLimit, cfg.Headers, logger)
	app := webapp.NewHandler(cfg.Webapp, cfg.PathFilter, svc.RequestShutdown, logger)
	svc.Use(app.Perimeter)
	app.RegisterRoutes(svc.HTTPMux())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start(ctx)
	}()

	env := &ServerEnv{
		URL:     fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.HTTPPort),
		Root:    root,
		Service: svc,
	}

	var stopOnce sync.Once
	env.Cancel = func() {
		stopOnce.Do(func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := svc.Stop(stopCtx); err != nil {
				t.Logf("stop returned: %v", err)
			}
			cancel()
			select {
			case <-errCh:
			case <-time.After(5 * time.Second):
				t.Log("server goroutine did not exit in time")
			}
		})
	}
	t.Cleanup(env.Cancel)

	waitForPort(t, cfg.Server.HTTPPort)
	return env
}

// getFreePort asks the kernel for a free TCP port.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// waitForPort polls until the listener accepts connections.
func waitForPort(t *testing.T, port int) {
	t.Helper()
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server on %s did not come up", addr)
}

// MakeRequest performs one HTTP request against the environment. The caller
// owns closing the response body.
func (env *ServerEnv) MakeRequest(t *testing.T, method, path string, body io.Reader, hdrs map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, env.URL+path, body)
	require.NoError(t, err)
	for k, v := range hdrs {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get performs a GET against the environment.
func (env *ServerEnv) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	return env.MakeRequest(t, http.MethodGet, path, nil, nil)
}

// readBody drains and closes the response body.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// decodeAPIError parses the structured error body and closes the response.
func decodeAPIError(t *testing.T, resp *http.Response) webapp.APIError {
	t.Helper()
	defer resp.Body.Close()
	var apiErr webapp.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	return apiErr
}

// assertSecurityHeaders verifies the fixed header set attached to every
// response under the default policy.
func assertSecurityHeaders(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", h.Get("Access-Control-Max-Age"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", h.Get("Permissions-Policy"))
	assert.Equal(t, "secureserve/2.0", h.Get("Server"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'self'")
	assert.Contains(t, h.Get("Content-Security-Policy"), "script-src 'self' 'unsafe-inline' https://js.puter.com")
	assert.NotEmpty(t, h.Get("X-Request-ID"))
}
