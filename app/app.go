package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/vitalvas/lilya/logger"
	"github.com/vitalvas/lilya/mux"
)

const (
	defaultAddress           = ":8000"
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
)

// defaultErrorHandlers render HTTPErrors that reach the application
// middleware unhandled, including ones the middleware raises itself.
var defaultErrorHandlers = mux.NewErrorHandlers().Type(&mux.HTTPError{}, mux.HandleHTTPError)

// Hook runs during startup or shutdown.
type Hook func(ctx context.Context) error

// Lifespan is entered on startup. The returned hook, if any, runs on
// shutdown after the shutdown hooks.
type Lifespan func(ctx context.Context) (shutdown Hook, err error)

// App is an application: a router wrapped in the application stack, with
// lifespan hooks and a server loop.
type App struct {
	router *mux.Router
	logger *slog.Logger
	debug  bool

	middleware    []mux.Middleware
	permissions   []mux.Permission
	errorHandlers *mux.ErrorHandlers

	onStartup  []Hook
	onShutdown []Hook
	lifespans  []Lifespan

	address         string
	listener        net.Listener
	shutdownTimeout time.Duration

	errs []error

	buildOnce sync.Once
	buildErr  error
	handler   http.Handler

	mu      sync.Mutex
	started bool
	exits   []Hook
}

// New returns an App with an empty router.
func New(opts ...Option) *App {
	a := &App{
		router:          mux.NewRouter(),
		errorHandlers:   mux.NewErrorHandlers(),
		address:         defaultAddress,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.OrDiscard(a.logger)
	return a
}

// Router returns the application router.
func (a *App) Router() *mux.Router {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Debug reports whether debug mode is on.
func (a *App) Debug() bool {
	return a.debug
}

// URLFor builds the URL of the route registered under name.
func (a *App) URLFor(name string, params map[string]any) (*url.URL, error) {
	return a.router.URLFor(name, params)
}

// Build validates the application and router configuration and composes
// the application stack. Only the first call composes; later calls return
// the same result.
func (a *App) Build() error {
	a.buildOnce.Do(func() {
		errs := slices.Clone(a.errs)
		errs = append(errs, a.errorHandlers.Err())
		if err := a.router.Build(); err != nil {
			errs = append(errs, err)
		}
		if a.buildErr = errors.Join(errs...); a.buildErr != nil {
			return
		}

		h := a.router.Endpoint()
		for i := len(a.permissions) - 1; i >= 0; i-- {
			h = a.permissions[i].Wrap(h)
		}
		h = a.errorHandlers.Wrap(h)
		h = mux.Chain(h, a.middleware...)
		h = defaultErrorHandlers.Wrap(h)
		a.handler = a.serverError(h)
	})
	return a.buildErr
}

// ServeHTTP implements http.Handler. It builds the application on first use
// and panics if the configuration is invalid.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := a.Build(); err != nil {
		panic(err)
	}
	a.handler.ServeHTTP(w, r)
}

// Startup runs the startup hooks in registration order, then enters each
// lifespan. The first failure aborts startup; lifespans already entered
// are exited before returning.
func (a *App) Startup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return errors.New("app: already started")
	}

	for _, hook := range a.onStartup {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("app: startup hook: %w", err)
		}
	}

	for _, enter := range a.lifespans {
		exit, err := enter(ctx)
		if err != nil {
			err = fmt.Errorf("app: lifespan: %w", err)
			return errors.Join(err, a.runExits(ctx))
		}
		if exit != nil {
			a.exits = append(a.exits, exit)
		}
	}

	a.started = true
	a.logger.DebugContext(ctx, "application started")
	return nil
}

// Shutdown runs every shutdown hook in registration order, then exits the
// lifespans in reverse order. All errors are joined.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, hook := range a.onShutdown {
		if err := hook(ctx); err != nil {
			a.logger.ErrorContext(ctx, "shutdown hook failed", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("app: shutdown hook: %w", err))
		}
	}
	errs = append(errs, a.runExits(ctx))

	a.started = false
	return errors.Join(errs...)
}

// runExits calls the collected lifespan exits, newest first.
func (a *App) runExits(ctx context.Context) error {
	var errs []error
	for i := len(a.exits) - 1; i >= 0; i-- {
		if err := a.exits[i](ctx); err != nil {
			a.logger.ErrorContext(ctx, "lifespan exit failed", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("app: lifespan exit: %w", err))
		}
	}
	a.exits = nil
	return errors.Join(errs...)
}
