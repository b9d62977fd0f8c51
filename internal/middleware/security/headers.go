// Package security sets the response headers of the JSON API.
package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	// CacheControl applies to every API response; ledger data is never cached.
	CacheControl string
}

// DefaultHeadersConfig returns the defaults for a JSON-only API: nothing
// may be framed, embedded or cached.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

// Headers returns a middleware applying config to every response.
func Headers(config HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applyHeaders(w.Header(), r, config)
			next.ServeHTTP(w, r)
		})
	}
}

func applyHeaders(h http.Header, r *http.Request, config HeadersConfig) {
	setIfAny(h, "Content-Security-Policy", config.CSP)
	setIfAny(h, "X-Frame-Options", config.XFrameOptions)
	setIfAny(h, "X-Content-Type-Options", config.XContentTypeOptions)
	setIfAny(h, "Referrer-Policy", config.ReferrerPolicy)
	setIfAny(h, "Cross-Origin-Resource-Policy", config.CrossOriginResource)
	setIfAny(h, "Cache-Control", config.CacheControl)

	// HSTS only means something over TLS
	if r.TLS != nil && config.HSTSMaxAge > 0 {
		v := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", v)
	}
}

func setIfAny(h http.Header, name, value string) {
	if value != "" {
		h.Set(name, value)
	}
}
