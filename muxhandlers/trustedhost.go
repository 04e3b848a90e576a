package muxhandlers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/idna"

	"github.com/vitalvas/lilya/mux"
)

// ErrNoAllowedHosts is returned when TrustedHostConfig.AllowedHosts is
// empty.
var ErrNoAllowedHosts = errors.New("trusted host: at least one allowed host is required")

// TrustedHostConfig configures the trusted host middleware.
type TrustedHostConfig struct {
	// AllowedHosts lists accepted hostnames. "*" accepts any host and
	// "*.example.com" accepts every subdomain of example.com (but not
	// example.com itself). Internationalized names are accepted in either
	// Unicode or punycode form.
	AllowedHosts []string

	// WWWRedirect redirects a request for "example.com" to
	// "www.example.com" when only the latter is allowed.
	WWWRedirect bool
}

type hostMatcher struct {
	any      bool
	exact    []string
	suffixes []string
}

func newHostMatcher(hosts []string) (*hostMatcher, error) {
	if len(hosts) == 0 {
		return nil, ErrNoAllowedHosts
	}

	m := &hostMatcher{}
	for _, h := range hosts {
		if h == "*" {
			m.any = true
			continue
		}

		wildcard := strings.HasPrefix(h, "*.")
		name := strings.TrimPrefix(h, "*.")
		if strings.Contains(name, "*") {
			return nil, fmt.Errorf("trusted host: wildcard is only allowed as the first label: %q", h)
		}

		ascii, err := normalizeHost(name)
		if err != nil {
			return nil, fmt.Errorf("trusted host: %q: %w", h, err)
		}

		if wildcard {
			m.suffixes = append(m.suffixes, "."+ascii)
		} else {
			m.exact = append(m.exact, ascii)
		}
	}
	return m, nil
}

func (m *hostMatcher) match(host string) bool {
	if m.any {
		return true
	}
	if slices.Contains(m.exact, host) {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// normalizeHost lowercases host and converts it to its IDNA ASCII form.
func normalizeHost(host string) (string, error) {
	return idna.Lookup.ToASCII(strings.TrimSuffix(strings.ToLower(host), "."))
}

// requestHostname returns the normalized Host header without port.
func requestHostname(r *http.Request) (string, error) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if net.ParseIP(host) != nil {
		return host, nil
	}
	return normalizeHost(host)
}

// TrustedHostMiddleware returns a middleware rejecting requests whose Host
// header is not allowed with 400 Bad Request, guarding against host header
// attacks.
func TrustedHostMiddleware(cfg TrustedHostConfig) (mux.MiddlewareFunc, error) {
	m, err := newHostMatcher(cfg.AllowedHosts)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, err := requestHostname(r)
			if err == nil && m.match(host) {
				next.ServeHTTP(w, r)
				return
			}

			if err == nil && cfg.WWWRedirect && !strings.HasPrefix(host, "www.") && m.match("www."+host) {
				u := url.URL{
					Scheme:   "http",
					Host:     "www." + r.Host,
					Path:     r.URL.Path,
					RawPath:  r.URL.RawPath,
					RawQuery: r.URL.RawQuery,
				}
				if r.TLS != nil {
					u.Scheme = "https"
				}
				http.Redirect(w, r, u.String(), http.StatusMovedPermanently)
				return
			}

			mux.RenderError(w, r, mux.BadRequest("Invalid host header"))
		})
	}, nil
}
