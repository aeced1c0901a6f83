package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithPeer creates a child logger scoped to a remote endpoint, for
// ingress and disconnect-path logging.
func WithPeer(addr string) zerolog.Logger {
	return Logger.With().Str("peer", addr).Logger()
}

// WithStripe creates a child logger scoped to an ingress stripe index.
func WithStripe(stripe uint32) zerolog.Logger {
	return Logger.With().Uint32("stripe", stripe).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

// FatalHook is invoked by Fatal after the message is logged. It defaults
// to os.Exit(1), matching the fatal-condition contract for pool
// exhaustion and assertion violations. Tests that need to observe a
// fatal condition without killing the test binary can replace it.
var FatalHook = func() { os.Exit(1) }

// Fatal logs msg at error severity and then invokes FatalHook. Kept
// separate from zerolog's own Fatal level (which calls os.Exit
// directly, bypassing any hook) so every fatal condition in this
// module funnels through one overridable exit path.
func Fatal(msg string) {
	Logger.Error().Msg(msg)
	FatalHook()
}

// FatalField behaves like Fatal but attaches one structured field,
// for call sites that want to log the value that triggered the fatal
// condition without building a full zerolog chain.
func FatalField(msg string, key string, value any) {
	Logger.Error().Interface(key, value).Msg(msg)
	FatalHook()
}
