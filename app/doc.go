/*
Package app assembles a mux.Router into a runnable application.

An App wraps the router in its own stack, outermost first:

	server error layer    recovers panics, renders unhandled errors as 500
	HTTPError rendering   renders HTTPErrors nothing else handled
	app middleware        WithMiddleware, in declaration order
	exception layer       WithErrorHandlers
	app permissions       WithPermissions, in declaration order
	router                matching, 404/405 and route level stacks

The stack is composed once by Build. Run builds the application, runs the
startup hooks, serves until the context is cancelled or the process is
interrupted, drains in-flight requests and runs the shutdown hooks.

	a := app.New(
		app.WithLogger(log),
		app.WithMiddleware(requestID),
		app.WithOnShutdown(func(ctx context.Context) error { return db.Close() }),
	)
	a.Router().HandleFunc("/users/{id:int}", showUser).Methods(http.MethodGet)

	if err := a.Run(ctx); err != nil {
		log.Error("server failed", slog.Any("error", err))
	}
*/
package app
