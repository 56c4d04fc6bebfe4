/*
Package logx wraps zerolog for the relay.

It owns the global logger (human-readable console output in development, JSON
elsewhere) and exposes key/value helpers plus per-component child loggers so that
every log line from the chat core carries a "component" field.
*/
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls how InitGlobalLogger builds the global logger.
type Options struct {
	// Development switches to the colored console writer on stderr.
	Development bool

	// Level overrides the environment default ("debug" in development, "info" otherwise).
	// Unknown values fall back to the default.
	Level string

	// Output is where JSON logs go outside development. Defaults to os.Stdout.
	Output io.Writer
}

// InitGlobalLogger configures the global zerolog instance.
// All records carry a Unix timestamp and caller information.
func InitGlobalLogger(opts Options) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.InfoLevel
	if opts.Development {
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(opts.Level); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	if opts.Development {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	log.Logger = logger.Level(level).With().Caller().Logger()
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// checkFields drops a field list with an odd length instead of letting zerolog
// pair keys with the wrong values.
func checkFields(level string, fields []any) []any {
	if len(fields)%2 == 0 {
		return fields
	}

	Logger().Warn().
		Int("fields_count", len(fields)).
		Str("log_level", level).
		Msg("logx call received an odd number of fields; fields ignored")
	return nil
}

// Debug logs msg at debug level with optional key/value pairs.
func Debug(msg string, fields ...any) {
	Logger().Debug().
		Fields(checkFields("debug", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Info logs msg at info level with optional key/value pairs.
func Info(msg string, fields ...any) {
	Logger().Info().
		Fields(checkFields("info", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Warn logs msg at warn level with optional key/value pairs.
func Warn(msg string, fields ...any) {
	Logger().Warn().
		Fields(checkFields("warn", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Error logs err and msg at error level with optional key/value pairs.
func Error(err error, msg string, fields ...any) {
	Logger().Error().
		Err(err).
		Fields(checkFields("error", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}

// Fatal logs err and msg, then exits the process with status 1.
func Fatal(err error, msg string, fields ...any) {
	Logger().Fatal().
		Err(err).
		Fields(checkFields("fatal", fields)).
		CallerSkipFrame(1).
		Msg(msg)
}
