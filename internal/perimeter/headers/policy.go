// Package headers computes the fixed security header set attached to every
// response the server writes. The set depends only on configuration and the
// requested path's extension, never on the outcome of the request.
package headers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
)

// Config holds the response header policy.
type Config struct {
	// AllowOrigin is the CORS origin echoed on every response.
	AllowOrigin string `yaml:"allow_origin"`

	// AllowMethods lists the methods advertised for cross-origin use.
	AllowMethods []string `yaml:"allow_methods"`

	// AllowHeaders lists the request headers advertised for cross-origin use.
	AllowHeaders []string `yaml:"allow_headers"`

	// PreflightMaxAge is how long browsers may cache a preflight result,
	// in seconds.
	PreflightMaxAge int `yaml:"preflight_max_age"`

	// ScriptOrigin is the single third-party origin allowed to serve
	// scripts, for the hosted authentication widget.
	ScriptOrigin string `yaml:"script_origin"`

	// CacheableExtensions lists the extensions served with a public
	// cache policy. Everything else is served uncacheable.
	CacheableExtensions []string `yaml:"cacheable_extensions"`

	// CacheMaxAge is the max-age for cacheable extensions, in seconds.
	CacheMaxAge int `yaml:"cache_max_age"`

	// ServerToken is the product token reported in the Server header.
	ServerToken string `yaml:"server_token"`
}

// DefaultConfig returns the default header policy.
func DefaultConfig() Config {
	return Config{
		AllowOrigin:     "*",
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
		PreflightMaxAge: 86400,
		ScriptOrigin:    "https://js.puter.com",
		CacheableExtensions: []string{
			".css", ".js", ".png", ".jpg", ".ico", ".woff", ".woff2",
		},
		CacheMaxAge: 3600,
		ServerToken: "secureserve/2.0",
	}
}

// ApplyDefaults replaces zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.AllowOrigin == "" {
		c.AllowOrigin = defaults.AllowOrigin
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = defaults.AllowMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = defaults.AllowHeaders
	}
	if c.PreflightMaxAge == 0 {
		c.PreflightMaxAge = defaults.PreflightMaxAge
	}
	if c.ScriptOrigin == "" {
		c.ScriptOrigin = defaults.ScriptOrigin
	}
	if len(c.CacheableExtensions) == 0 {
		c.CacheableExtensions = defaults.CacheableExtensions
	}
	if c.CacheMaxAge == 0 {
		c.CacheMaxAge = defaults.CacheMaxAge
	}
	if c.ServerToken == "" {
		c.ServerToken = defaults.ServerToken
	}
}

// ApplyEnvOverrides lets environment variables replace loaded values.
func (c *Config) ApplyEnvOverrides() {}

// ResolvePaths is a no-op; the header policy has no path fields.
func (c *Config) ResolvePaths(_ string) {}

// Validate checks the section and reports the first problem.
func (c *Config) Validate() error {
	if c.PreflightMaxAge < 0 {
		return fmt.Errorf("headers.preflight_max_age must not be negative")
	}
	if c.CacheMaxAge < 0 {
		return fmt.Errorf("headers.cache_max_age must not be negative")
	}
	if c.ScriptOrigin != "" && !strings.HasPrefix(c.ScriptOrigin, "https://") {
		return fmt.Errorf("headers.script_origin must be an https origin")
	}
	for _, ext := range c.CacheableExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("headers.cacheable_extensions: %q must be a dotted extension", ext)
		}
	}
	return nil
}

// Policy applies the configured header set. The policy string values are
// assembled once at construction; Apply only does map writes.
type Policy struct {
	allowOrigin     string
	allowMethods    string
	allowHeaders    string
	preflightMaxAge string
	csp             string
	serverToken     string
	cacheControl    string
	cacheable       map[string]struct{}
}

// New creates a Policy from the given configuration.
func New(cfg Config) *Policy {
	p := &Policy{
		allowOrigin:     cfg.AllowOrigin,
		allowMethods:    strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:    strings.Join(cfg.AllowHeaders, ", "),
		preflightMaxAge: strconv.Itoa(cfg.PreflightMaxAge),
		csp:             buildCSP(cfg.ScriptOrigin),
		serverToken:     cfg.ServerToken,
		cacheControl:    fmt.Sprintf("public, max-age=%d", cfg.CacheMaxAge),
		cacheable:       make(map[string]struct{}, len(cfg.CacheableExtensions)),
	}
	for _, ext := range cfg.CacheableExtensions {
		p.cacheable[strings.ToLower(ext)] = struct{}{}
	}
	return p
}

// buildCSP assembles the content security policy: self-origin scripts and
// styles plus the one configured widget origin, HTTPS/WSS connections, no
// plugins, no foreign form targets.
func buildCSP(scriptOrigin string) string {
	scriptSrc := "'self' 'unsafe-inline'"
	if scriptOrigin != "" {
		scriptSrc += " " + scriptOrigin
	}
	return "default-src 'self'; " +
		"script-src " + scriptSrc + "; " +
		"style-src 'self' 'unsafe-inline'; " +
		"connect-src 'self' https: wss:; " +
		"img-src 'self' data: https:; " +
		"font-src 'self' data:; " +
		"object-src 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self'"
}

// Apply writes the full header set for a response to the given path. The
// output is identical for every status code; only Cache-Control varies,
// and only with the path's extension.
func (p *Policy) Apply(h http.Header, requestPath string) {
	h.Set("Access-Control-Allow-Origin", p.allowOrigin)
	h.Set("Access-Control-Allow-Methods", p.allowMethods)
	h.Set("Access-Control-Allow-Headers", p.allowHeaders)
	h.Set("Access-Control-Max-Age", p.preflightMaxAge)

	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	// Kept for browsers that predate CSP support.
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	h.Set("Content-Security-Policy", p.csp)
	h.Set("Server", p.serverToken)

	if _, ok := p.cacheable[strings.ToLower(path.Ext(requestPath))]; ok {
		h.Set("Cache-Control", p.cacheControl)
	} else {
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}
}

// Middleware applies the policy before delegating, so every response the
// inner handler writes, including errors, carries the full set.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Apply(w.Header(), r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
