package observability

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// NewLogger returns a console logger at debug level in dev and a JSON logger
// at info level elsewhere. Every entry carries the process name.
func NewLogger(env, process string) zerolog.Logger {
	return newLogger(os.Stdout, env, process)
}

func newLogger(out io.Writer, env, process string) zerolog.Logger {
	level := zerolog.InfoLevel
	dev := strings.EqualFold(env, "dev")
	if dev {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if dev {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("process", process).Logger()
}

// AccessLog attaches logger to each request context and writes one entry per
// completed request.
func AccessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	withLogger := hlog.NewHandler(logger)
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		return withLogger(access(next))
	}
}
