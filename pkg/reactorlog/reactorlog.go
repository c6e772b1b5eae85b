/*
Package reactorlog wires zerolog into this engine's own vocabulary: a global
logger plus WithStore/WithSignal/WithEffect child-logger constructors, and an
Adapter satisfying the minimal Logger interfaces package subject and package
store expect so a caller can pass a reactorlog logger straight into
store.WithLogger/subject.WithLogger without either of those packages
importing zerolog directly.
*/
package reactorlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured once via Init.
var Logger zerolog.Logger

// Level is a logging verbosity level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
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

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithStore creates a child logger tagged with a store's debug name.
func WithStore(name string) zerolog.Logger {
	return Logger.With().Str("store", name).Logger()
}

// WithSignal creates a child logger tagged with a signal identifier's debug
// name and kind.
func WithSignal(kind, name string) zerolog.Logger {
	return Logger.With().Str("signal_kind", kind).Str("signal", name).Logger()
}

// WithEffect creates a child logger tagged with an effect identifier's debug
// name.
func WithEffect(name string) zerolog.Logger {
	return Logger.With().Str("effect", name).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

// Adapter satisfies package subject's and package store's Logger interface
// (Debug(msg string, kv ...any); Warn(msg string, kv ...any)) on top of a
// zerolog.Logger, turning kv pairs into structured fields.
type Adapter struct {
	Z zerolog.Logger
}

func NewAdapter(z zerolog.Logger) Adapter { return Adapter{Z: z} }

func (a Adapter) Debug(msg string, kv ...any) { a.event(a.Z.Debug(), msg, kv) }
func (a Adapter) Warn(msg string, kv ...any)  { a.event(a.Z.Warn(), msg, kv) }

func (a Adapter) event(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
