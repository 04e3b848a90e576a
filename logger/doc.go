// Package logger builds the structured loggers used by lilya applications.
//
// Loggers are plain *slog.Logger values. New decorates the configured
// handler with context extractors, so request-scoped values such as the
// request ID are added to every record logged with a request context:
//
//	log, err := logger.New(logger.Config{Level: "debug", Format: "text"},
//	    muxhandlers.RequestIDAttr)
//
// When Config.SentryDSN is set, records at Config.SentryLevel and above are
// also sent to Sentry; errors become issues. If Sentry cannot be
// initialized, New falls back to the local handler alone and reports the
// failure through it.
package logger
