package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	WithComponent(component string) Logger

	// Printf lets the logger back fx.Logger.
	Printf(format string, args ...any)
}

type Opts struct {
	Env       string
	SentryDSN string
	Output    io.Writer
}

type Impl struct {
	*slog.Logger
}

var _ Logger = (*Impl)(nil)

func New(opts Opts) *Impl {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := slog.LevelInfo
	var zl zerolog.Logger
	if opts.Env == "" || opts.Env == "development" {
		level = slog.LevelDebug
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(out).With().Timestamp().Logger()
	}

	handlers := []slog.Handler{
		slogzerolog.Option{Level: level, Logger: &zl}.NewZerologHandler(),
	}

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Env,
		})
		if err == nil {
			handlers = append(handlers, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
		} else {
			fmt.Fprintf(out, "sentry init failed: %v\n", err)
		}
	}

	return &Impl{
		Logger: slog.New(slogmulti.Fanout(handlers...)),
	}
}

func (l *Impl) WithComponent(component string) Logger {
	return &Impl{Logger: l.Logger.With("component", component)}
}

func (l *Impl) Printf(format string, args ...any) {
	l.Logger.Info(fmt.Sprintf(format, args...))
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Impl {
	return &Impl{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
