// Package logger builds slog loggers for the server and provides
// nil-safe attribute helpers.
package logger

import (
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
)

type options struct {
	out    io.Writer
	level  slog.Level
	json   bool
	attrs  []slog.Attr
	source bool
}

// Option configures New.
type Option func(*options)

// WithOutput sets the destination writer. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithLevelName parses debug, info, warn or error. Unknown names keep the current level.
func WithLevelName(name string) Option {
	return func(o *options) {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.ToUpper(name))); err == nil {
			o.level = l
		}
	}
}

// WithFormat selects "json" or "text".
func WithFormat(format string) Option {
	return func(o *options) { o.json = strings.EqualFold(format, "json") }
}

// WithAttrs adds attributes to every record.
func WithAttrs(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithSource includes the caller location.
func WithSource() Option {
	return func(o *options) { o.source = true }
}

// New creates a logger.
func New(opts ...Option) *slog.Logger {
	o := &options{out: os.Stderr, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(o)
	}

	hopts := &slog.HandlerOptions{Level: o.level, AddSource: o.source}
	var h slog.Handler
	if o.json {
		h = slog.NewJSONHandler(o.out, hopts)
	} else {
		h = slog.NewTextHandler(o.out, hopts)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	return slog.New(h)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}
