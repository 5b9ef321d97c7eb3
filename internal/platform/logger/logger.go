// Package logger provides a zerolog wrapper with opinionated defaults and
// invocation-scoped logging support
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// DefaultLevel keeps a successful run silent on stderr
const DefaultLevel = "warn"

// Options configures the logger
type Options struct {
	Level        string
	Format       string
	Component    string
	Writer       io.Writer
	WithCaller   bool
	StaticFields map[string]string
}

// Logger is the project-wide logging type
type Logger = zerolog.Logger

// New builds a logger from opt.
// Output defaults to stderr because stdout carries the protocol payload.
func New(opt Options) Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if strings.EqualFold(opt.Format, FormatConsole) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Component != "" {
		ctx = ctx.Str("component", opt.Component)
	}
	for k, v := range opt.StaticFields {
		ctx = ctx.Str(k, v)
	}

	log := ctx.Logger()
	if opt.WithCaller {
		log = log.With().Caller().Logger()
	}
	return log
}

// Named returns a child of base with a component field. A nil base yields a
// disabled logger so library callers need not supply one.
func Named(base *Logger, component string) Logger {
	if base == nil {
		return zerolog.Nop()
	}
	if component == "" {
		return *base
	}
	return base.With().Str("component", component).Logger()
}

// ValidLevel reports whether s names a level
func ValidLevel(s string) error {
	if _, ok := levels[strings.ToLower(strings.TrimSpace(s))]; !ok {
		return fmt.Errorf("unknown log level %q", s)
	}
	return nil
}

// ValidFormat reports whether s names an output format
func ValidFormat(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case FormatJSON, FormatConsole:
		return nil
	}
	return fmt.Errorf("unknown log format %q (want json or console)", s)
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
}

// parseLevel supports string-only levels; unknown values fall back to warn
func parseLevel(s string) zerolog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return zerolog.WarnLevel
}

type ctxKey struct{ name string }

var keyInvocationID = ctxKey{"invocation_id"}

// WithInvocation annotates ctx with the id of the current invocation
func WithInvocation(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, keyInvocationID, id)
}

// InvocationID returns the id stored by WithInvocation, if any
func InvocationID(ctx context.Context) string {
	s, _ := ctx.Value(keyInvocationID).(string)
	return s
}

// From returns a child of l enriched from ctx (invocation_id)
func From(ctx context.Context, l Logger) Logger {
	if id := InvocationID(ctx); id != "" {
		return l.With().Str("invocation_id", id).Logger()
	}
	return l
}
