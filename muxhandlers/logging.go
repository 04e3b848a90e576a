package muxhandlers

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/vitalvas/lilya/mux"
)

// RequestLoggerConfig configures the request logging middleware.
type RequestLoggerConfig struct {
	// Logger receives one record per request. Nil discards.
	Logger *slog.Logger

	// Router resolves route templates when the middleware runs outside
	// the router.
	Router *mux.Router

	// Level is used for successful requests. 4xx responses are logged at
	// Warn and 5xx responses at Error.
	Level slog.Level

	// SkipPaths lists request paths that are not logged.
	SkipPaths []string
}

// RequestLoggerMiddleware returns a middleware logging method, path, route
// template, status, response size and duration of every request. A request
// failing with an error that no inner layer rendered is logged with the
// status the error carries, or 500.
func RequestLoggerMiddleware(cfg RequestLoggerConfig) mux.EndpointMiddleware {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return func(next mux.Endpoint) mux.Endpoint {
		return func(w http.ResponseWriter, r *http.Request) error {
			if slices.Contains(cfg.SkipPaths, r.URL.Path) {
				return next(w, r)
			}

			start := time.Now()
			rw := mux.NewResponseWriter(w)
			err := next(rw, r)

			status := responseStatus(rw, err)
			level := cfg.Level
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routeTemplate(cfg.Router, r)),
				slog.Int("status", status),
				slog.Int64("size", rw.Size()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
			return err
		}
	}
}

// responseStatus returns the status sent, or the one err will be rendered
// with when nothing was sent yet.
func responseStatus(rw *mux.ResponseWriter, err error) int {
	if err == nil || rw.Written() {
		return rw.Status()
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return http.StatusInternalServerError
}
