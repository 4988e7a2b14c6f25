package app

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string

	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer

	// JSON forces JSON lines even on a terminal.
	JSON bool
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  "info",
		Output: os.Stderr,
	}
}

// ParseLogLevel parses a level name. Unknown or empty names yield info;
// "warning" is accepted for warn.
func ParseLogLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// NewLogger builds a logger. Output that is a terminal gets the console
// format; anything else gets JSON lines.
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON && isTerminal(out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).
		Level(ParseLogLevel(cfg.Level)).
		With().Timestamp().
		Logger()
}

// ComponentLogger returns log tagged with a component field.
func ComponentLogger(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Logger returns the application's logger.
func (app *Application) Logger() zerolog.Logger {
	return app.log
}

// logComponentError logs an error with component context.
func (app *Application) logComponentError(component string, err error) {
	if err != nil {
		l := ComponentLogger(app.log, component)
		l.Error().Err(err).Msg("component error")
	}
}
