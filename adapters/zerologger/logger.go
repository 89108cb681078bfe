// Package zerologger backs the glog logger contract with zerolog.
package zerologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// Logger emits glog calls as zerolog events. Variadic args are read as
// key/value pairs.
type Logger struct {
	base zerolog.Logger
	ctx  context.Context
}

func New(base zerolog.Logger) *Logger {
	return &Logger{base: base}
}

// NewJSON writes JSON lines to out, tagged with the service name.
func NewJSON(out io.Writer, service string, level zerolog.Level) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return New(zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger())
}

// NewConsole writes human readable lines for local runs.
func NewConsole(out io.Writer, service string, level zerolog.Level) *Logger {
	if out == nil {
		out = os.Stdout
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return New(zerolog.New(writer).Level(level).With().Timestamp().Str("service", service).Logger())
}

func (l *Logger) Trace(msg string, args ...any) { l.emit(l.base.Trace(), msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.emit(l.base.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(l.base.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(l.base.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(l.base.Error(), msg, args) }

// Fatal logs at fatal level without exiting; callers decide how to stop.
func (l *Logger) Fatal(msg string, args ...any) {
	l.emit(l.base.WithLevel(zerolog.FatalLevel), msg, args)
}

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if l == nil {
		return nil
	}
	return &Logger{base: l.base, ctx: ctx}
}

// Named returns a child logger carrying a logger=name field.
func (l *Logger) Named(name string) *Logger {
	return &Logger{base: l.base.With().Str("logger", name).Logger(), ctx: l.ctx}
}

func (l *Logger) Zerolog() zerolog.Logger {
	return l.base
}

func (l *Logger) emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	if l.ctx != nil {
		event = event.Ctx(l.ctx)
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			event = event.Interface("extra", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, isErr := args[i+1].(error); isErr {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}

// Provider hands out named children of one base logger.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	return p.root.Named(name)
}

// ParseLevel accepts zerolog level names and falls back to info.
func ParseLevel(value string) zerolog.Level {
	level, err := zerolog.ParseLevel(value)
	if err != nil || value == "" {
		return zerolog.InfoLevel
	}
	return level
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
