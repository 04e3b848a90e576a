package app

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/vitalvas/lilya/mux"
	"github.com/vitalvas/lilya/muxhandlers"
	"github.com/vitalvas/lilya/settings"
)

// Option configures an App.
type Option func(*App)

// WithDebug renders unhandled errors as a page with the error chain and,
// for panics, the stack trace.
func WithDebug(debug bool) Option {
	return func(a *App) {
		a.debug = debug
	}
}

// WithLogger sets the application logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithRootPath sets the path prefix the application is mounted under.
func WithRootPath(p string) Option {
	return func(a *App) {
		a.router.RootPath(p)
	}
}

// WithRedirectSlashes toggles redirects to the path with the trailing
// slash toggled when only that form matches.
func WithRedirectSlashes(v bool) Option {
	return func(a *App) {
		a.router.RedirectSlashes(v)
	}
}

// WithMiddleware appends application level middleware. The first one sees
// the request first.
func WithMiddleware(mws ...mux.Middleware) Option {
	return func(a *App) {
		for _, mw := range mws {
			if isNilMiddleware(mw) {
				a.errs = append(a.errs, errors.New("app: nil middleware"))
				continue
			}
			a.middleware = append(a.middleware, mw)
		}
	}
}

// WithPermissions appends application level permissions. They run after
// the application middleware and before the router.
func WithPermissions(perms ...mux.Permission) Option {
	return func(a *App) {
		for _, p := range perms {
			if p == nil {
				a.errs = append(a.errs, errors.New("app: nil permission"))
				continue
			}
			a.permissions = append(a.permissions, p)
		}
	}
}

// WithErrorHandlers merges eh into the application exception layer.
// HTTPErrors none of them handles are rendered as the response.
func WithErrorHandlers(eh *mux.ErrorHandlers) Option {
	return func(a *App) {
		if eh == nil {
			a.errs = append(a.errs, errors.New("app: nil error handlers"))
			return
		}
		a.errorHandlers = a.errorHandlers.Merge(eh)
	}
}

// WithOnStartup appends a hook run by Startup.
func WithOnStartup(hooks ...Hook) Option {
	return func(a *App) {
		for _, h := range hooks {
			if h == nil {
				a.errs = append(a.errs, errors.New("app: nil startup hook"))
				continue
			}
			a.onStartup = append(a.onStartup, h)
		}
	}
}

// WithOnShutdown appends a hook run by Shutdown.
func WithOnShutdown(hooks ...Hook) Option {
	return func(a *App) {
		for _, h := range hooks {
			if h == nil {
				a.errs = append(a.errs, errors.New("app: nil shutdown hook"))
				continue
			}
			a.onShutdown = append(a.onShutdown, h)
		}
	}
}

// WithLifespan appends a lifespan entered after the startup hooks.
func WithLifespan(l Lifespan) Option {
	return func(a *App) {
		if l == nil {
			a.errs = append(a.errs, errors.New("app: nil lifespan"))
			return
		}
		a.lifespans = append(a.lifespans, l)
	}
}

// WithAddress sets the TCP address Run listens on.
func WithAddress(addr string) Option {
	return func(a *App) {
		a.address = addr
	}
}

// WithListener makes Run serve on ln instead of listening itself.
func WithListener(ln net.Listener) Option {
	return func(a *App) {
		a.listener = ln
	}
}

// WithShutdownTimeout bounds the graceful shutdown and the shutdown hooks.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// WithSettings applies s. Allowed hosts, CORS origins and a positive gzip
// minimum size install the matching middleware, in that order, at the
// current position of the application middleware.
func WithSettings(s *settings.Settings) Option {
	return func(a *App) {
		if s == nil {
			a.errs = append(a.errs, errors.New("app: nil settings"))
			return
		}
		if err := s.Validate(); err != nil {
			a.errs = append(a.errs, err)
			return
		}

		a.debug = s.Debug
		a.address = s.Address
		a.router.RootPath(s.RootPath)
		a.router.RedirectSlashes(s.RedirectSlashes)
		WithShutdownTimeout(s.ShutdownTimeout)(a)

		if len(s.AllowedHosts) > 0 {
			mw, err := muxhandlers.TrustedHostMiddleware(muxhandlers.TrustedHostConfig{
				AllowedHosts: s.AllowedHosts,
			})
			a.addConfigured(mw, err)
		}

		if len(s.CORSOrigins) > 0 {
			mw, err := muxhandlers.CORSMiddleware(muxhandlers.CORSConfig{
				AllowedOrigins: s.CORSOrigins,
				Router:         a.router,
			})
			a.addConfigured(mw, err)
		}

		if s.GZipMinimumSize > 0 {
			mw, err := muxhandlers.GZipMiddleware(muxhandlers.GZipConfig{
				MinimumSize: s.GZipMinimumSize,
			})
			a.addConfigured(mw, err)
		}
	}
}

func (a *App) addConfigured(mw mux.MiddlewareFunc, err error) {
	if err != nil {
		a.errs = append(a.errs, err)
		return
	}
	a.middleware = append(a.middleware, mw)
}

func isNilMiddleware(m mux.Middleware) bool {
	switch x := m.(type) {
	case nil:
		return true
	case mux.MiddlewareFunc:
		return x == nil
	case mux.EndpointMiddleware:
		return x == nil
	case mux.Permission:
		return x == nil
	}
	return false
}
