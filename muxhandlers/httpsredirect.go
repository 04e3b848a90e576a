package muxhandlers

import (
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/lilya/mux"
)

// HTTPSRedirectMiddleware returns a middleware redirecting plain HTTP
// requests to HTTPS with 308 Permanent Redirect, which keeps the method
// and body. WebSocket upgrades are redirected from ws to wss. Default
// ports are dropped from the target.
func HTTPSRedirectMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil || r.URL.Scheme == "https" || r.URL.Scheme == "wss" {
				next.ServeHTTP(w, r)
				return
			}

			scheme := "https"
			if httpguts.HeaderValuesContainsToken(r.Header["Upgrade"], "websocket") {
				scheme = "wss"
			}

			host := r.Host
			if h, port, err := net.SplitHostPort(host); err == nil && (port == "80" || port == "443") {
				host = h
				if net.ParseIP(h) != nil && net.ParseIP(h).To4() == nil {
					host = "[" + h + "]"
				}
			}

			u := url.URL{
				Scheme:   scheme,
				Host:     host,
				Path:     r.URL.Path,
				RawPath:  r.URL.RawPath,
				RawQuery: r.URL.RawQuery,
			}
			http.Redirect(w, r, u.String(), http.StatusPermanentRedirect)
		})
	}
}
