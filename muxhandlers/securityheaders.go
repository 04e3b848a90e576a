package muxhandlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/vitalvas/lilya/mux"
)

// ErrInvalidFrameOption is returned when SecurityHeadersConfig.FrameOption
// is not "DENY", "SAMEORIGIN" or empty.
var ErrInvalidFrameOption = errors.New("security headers: frame option must be DENY, SAMEORIGIN, or empty")

// SecurityHeadersConfig configures the security headers middleware.
type SecurityHeadersConfig struct {
	// DisableContentTypeNosniff omits X-Content-Type-Options: nosniff.
	DisableContentTypeNosniff bool

	// FrameOption is the X-Frame-Options value. Defaults to "DENY".
	FrameOption string

	// ReferrerPolicy defaults to "strict-origin-when-cross-origin".
	ReferrerPolicy string

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds.
	// Zero omits the header. It is only sent on TLS requests
	// (RFC 6797 Section 7.2).
	HSTSMaxAge int

	HSTSIncludeSubDomains bool
	HSTSPreload           bool

	// Optional policies, omitted when empty.
	CrossOriginOpenerPolicy string
	ContentSecurityPolicy   string
	PermissionsPolicy       string
}

// SecurityHeadersMiddleware returns a middleware setting common security
// response headers before the inner handler runs, so error responses carry
// them too.
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) (mux.MiddlewareFunc, error) {
	switch cfg.FrameOption {
	case "":
		cfg.FrameOption = "DENY"
	case "DENY", "SAMEORIGIN":
	default:
		return nil, ErrInvalidFrameOption
	}

	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = "strict-origin-when-cross-origin"
	}

	static := http.Header{}
	if !cfg.DisableContentTypeNosniff {
		static.Set("X-Content-Type-Options", "nosniff")
	}
	static.Set("X-Frame-Options", cfg.FrameOption)
	static.Set("Referrer-Policy", cfg.ReferrerPolicy)
	for name, value := range map[string]string{
		"Cross-Origin-Opener-Policy": cfg.CrossOriginOpenerPolicy,
		"Content-Security-Policy":    cfg.ContentSecurityPolicy,
		"Permissions-Policy":         cfg.PermissionsPolicy,
	} {
		if value != "" {
			static.Set(name, value)
		}
	}

	var hsts string
	if cfg.HSTSMaxAge > 0 {
		directives := []string{"max-age=" + strconv.Itoa(cfg.HSTSMaxAge)}
		if cfg.HSTSIncludeSubDomains {
			directives = append(directives, "includeSubDomains")
		}
		if cfg.HSTSPreload {
			directives = append(directives, "preload")
		}
		hsts = strings.Join(directives, "; ")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, values := range static {
				h[name] = slices.Clone(values)
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
