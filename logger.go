package auth

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger. Trailing args are read as
// key/value pairs, a dangling key is logged under "arg".
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: l}
}

// NewLogger builds a zerolog backed Logger writing to w. Format "console"
// gives human readable output, anything else JSON.
func NewLogger(w io.Writer, level, format string) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return NewZerologLogger(zerolog.New(w).Level(lvl).With().Timestamp().Logger())
}

// Named returns a child logger tagged with component.
func (z *ZerologLogger) Named(component string) *ZerologLogger {
	return &ZerologLogger{log: z.log.With().Str("component", component).Logger()}
}

func (z *ZerologLogger) Debug(msg string, args ...any) { z.emit(z.log.Debug(), msg, args) }
func (z *ZerologLogger) Info(msg string, args ...any)  { z.emit(z.log.Info(), msg, args) }
func (z *ZerologLogger) Warn(msg string, args ...any)  { z.emit(z.log.Warn(), msg, args) }
func (z *ZerologLogger) Error(msg string, args ...any) { z.emit(z.log.Error(), msg, args) }

func (z *ZerologLogger) emit(evt *zerolog.Event, msg string, args []any) {
	if evt == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			evt = evt.Interface("arg", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, isErr := args[i+1].(error); isErr {
			evt = evt.AnErr(key, err)
			continue
		}
		evt = evt.Interface(key, args[i+1])
	}
	evt.Msg(msg)
}

var _ Logger = (*ZerologLogger)(nil)

func defLogger() Logger {
	return NewLogger(os.Stderr, "info", "json").Named("auth")
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() *ZerologLogger {
	return NewZerologLogger(zerolog.Nop())
}
