package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Run builds the application, runs the startup hooks and serves until ctx
// is cancelled or the process receives SIGINT or SIGTERM. In-flight
// requests are then drained within the shutdown timeout and the shutdown
// hooks run. Errors from serving and shutting down are joined.
func (a *App) Run(ctx context.Context) error {
	if err := a.Build(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Startup(ctx); err != nil {
		return err
	}

	ln := a.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", a.address); err != nil {
			return errors.Join(err, a.shutdownWithTimeout(ctx))
		}
	}

	server := &http.Server{
		Handler:           a,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if herr := a.shutdownWithTimeout(ctx); herr != nil {
		err = errors.Join(err, herr)
	}

	if err != nil {
		a.logger.Error("shutdown completed with errors", slog.Any("error", err))
		return err
	}

	a.logger.Info("shutdown completed")
	return nil
}

func (a *App) shutdownWithTimeout(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}
