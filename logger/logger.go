package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config configures New.
type Config struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string

	// Format is "json" (default) or "text".
	Format string

	// Output receives log lines. Defaults to os.Stdout.
	Output io.Writer

	// SentryDSN enables forwarding to Sentry when set.
	SentryDSN string

	// SentryEnvironment is reported with every Sentry event.
	SentryEnvironment string

	// SentryLevel is the lowest level forwarded to Sentry. Defaults to
	// warn. Errors always create issues.
	SentryLevel string
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logger: invalid level %q", s)
	}
	return l, nil
}

// New builds a logger from cfg decorated with extractors.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var local slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		local = slog.NewJSONHandler(out, opts)
	case "text":
		local = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: invalid format %q", cfg.Format)
	}

	if cfg.SentryDSN == "" {
		return slog.New(WithExtractors(local, extractors...)), nil
	}

	sentryLevel := slog.LevelWarn
	if cfg.SentryLevel != "" {
		if sentryLevel, err = ParseLevel(cfg.SentryLevel); err != nil {
			return nil, err
		}
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(local).Error("sentry initialization failed, logging locally only", slog.Any("error", err))
		return slog.New(WithExtractors(local, extractors...)), nil
	}

	remote := sentryslog.Option{
		EventLevel: levelsFrom(max(sentryLevel, slog.LevelError)),
		LogLevel:   levelsFrom(sentryLevel),
	}.NewSentryHandler(context.Background())

	return slog.New(WithExtractors(fanout{local, remote}, extractors...)), nil
}

// levelsFrom lists the standard levels at or above lowest.
func levelsFrom(lowest slog.Level) []slog.Level {
	var out []slog.Level
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l >= lowest {
			out = append(out, l)
		}
	}
	return out
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Flush waits up to timeout for buffered Sentry events to be delivered.
// It reports true when Sentry is not initialized.
func Flush(timeout time.Duration) bool {
	if sentry.CurrentHub().Client() == nil {
		return true
	}
	return sentry.Flush(timeout)
}
