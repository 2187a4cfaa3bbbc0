// Package policy implements the tiered content-resolution contract shared
// by the native resolver and the browser mirror: an ordered list of named
// sources, each tried under a bounded deadline, with a defined fallback
// when every source misses. Resolution never fails upward.
package policy

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTierTimeout bounds a single source attempt so a hung tier cannot
// stall the whole chain.
const DefaultTierTimeout = 2 * time.Second

// Source is one tier. Try reports (value, true) on a hit; anything else —
// an error, an empty result, a not-ready store — is a miss and resolution
// moves on to the next tier.
type Source[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, bool)
}

// Config configures a resolution chain.
type Config struct {
	// TierTimeout is the deadline applied to each source attempt.
	// Zero uses DefaultTierTimeout; negative disables the deadline.
	TierTimeout time.Duration
	Logger      *slog.Logger
}

func (c Config) timeout() time.Duration {
	if c.TierTimeout == 0 {
		return DefaultTierTimeout
	}
	if c.TierTimeout < 0 {
		return 0
	}
	return c.TierTimeout
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Resolve tries sources strictly in order and returns the first hit, or
// fallback() when all miss. Tiers are never attempted concurrently: a
// lower tier runs only after the one above it has missed.
func Resolve[T any](ctx context.Context, cfg Config, sources []Source[T], fallback func() T) T {
	for _, src := range sources {
		tctx := ctx
		cancel := func() {}
		if d := cfg.timeout(); d > 0 {
			tctx, cancel = context.WithTimeout(ctx, d)
		}
		v, ok := src.Try(tctx)
		cancel()
		if ok {
			return v
		}
		cfg.logger().Debug("resolution tier miss", "source", src.Name)
	}
	return fallback()
}
