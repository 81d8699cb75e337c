// Package logging owns logger construction for the module. Components derive
// their loggers from Base so level configuration stays in one place.
package logging

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	baseOnce sync.Once
	base     zerolog.Logger
)

// Base returns the process-wide root logger. The level defaults to info and
// can be overridden with SKYLIGHT_LOG (trace, debug, info, warn, error, off).
func Base() zerolog.Logger {
	baseOnce.Do(func() {
		level := zerolog.InfoLevel
		if v := os.Getenv("SKYLIGHT_LOG"); v != "" {
			if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
				level = parsed
			}
		}
		base = zerolog.New(os.Stderr).
			Level(level).
			With().
			Timestamp().
			Logger()
		zerolog.TimeFieldFormat = time.RFC3339
	})
	return base
}

// Component returns a logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Base().With().Str("component", name).Logger()
}

type ctxKey struct{}

// WithContext stores a logger in the context.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in the context, or Base.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Base()
}
