// Package logx wraps zerolog the way cuemby-warren's pkg/log does: a single
// global logger configured once at startup, with component loggers handed
// out to the packages that want them.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger, configured by Init.
var Logger zerolog.Logger = zerolog.Nop()

// Config controls verbosity and output shape.
type Config struct {
	Level  zerolog.Level
	JSON   bool
	Output io.Writer
}

// Init configures the global logger. Called once from cmd/adb before any
// component logger is handed out.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSON {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.Kitchen,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with a component field, the
// same pattern cuemby-warren uses to attribute log lines to a subsystem.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
