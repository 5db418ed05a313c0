package security

import (
	"net/http"
	"strconv"
	"strings"
)

// HeadersConfig lists the response headers sent on every page and API call.
type HeadersConfig struct {
	// CSP directives, joined with "; ".
	CSP []string

	// HSTSMaxAge is in seconds; zero disables HSTS.
	HSTSMaxAge int
	// ForceHSTS sends HSTS even when TLS terminates at a proxy.
	ForceHSTS bool

	// Static holds the remaining fixed headers.
	Static map[string]string
}

// DefaultHeadersConfig allows scripts and styles from this origin only and
// form posts to Google's consent screen.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: []string{
			"default-src 'self'",
			"script-src 'self'",
			"style-src 'self'",
			"img-src 'self' data: https://*.googleusercontent.com",
			"connect-src 'self'",
			"object-src 'none'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
			"form-action 'self' https://accounts.google.com",
		},
		HSTSMaxAge: 365 * 24 * 60 * 60,
		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":    "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
	}
}

// HeadersMiddleware applies a HeadersConfig.
type HeadersMiddleware struct {
	static    http.Header
	hsts      string
	forceHSTS bool
}

// NewHeadersMiddleware renders the configured values once.
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{static: make(http.Header, len(config.Static)+1), forceHSTS: config.ForceHSTS}
	for k, v := range config.Static {
		h.static.Set(k, v)
	}
	if len(config.CSP) > 0 {
		h.static.Set("Content-Security-Policy", strings.Join(config.CSP, "; "))
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}
	return h
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for k, v := range h.static {
			out[k] = v
		}
		if h.hsts != "" && (r.TLS != nil || h.forceHSTS) {
			out.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// NoStoreMiddleware marks responses as uncacheable. API payloads carry
// personal financial data.
func NoStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge
// seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
