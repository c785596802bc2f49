// Package timeouts provides centralized timeout values for handler and job
// database calls.
package timeouts

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// EnvPrefix prefixes the environment overrides read by ConfigureFromEnv.
const EnvPrefix = "DEVCANVAS_TIMEOUT_"

// Config holds timeout configuration values.
type Config struct {
	Ping   time.Duration // health checks
	Short  time.Duration // single-document reads and writes
	Medium time.Duration // lists, aggregations, engagement writes
	Long   time.Duration // background jobs
}

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Long: DefaultLong}
}

var current atomic.Pointer[Config]

func init() {
	Reset()
}

func load() Config { return *current.Load() }

// Ping returns the timeout for health checks.
func Ping() time.Duration { return load().Ping }

// Short returns the timeout for simple operations.
func Short() time.Duration { return load().Short }

// Medium returns the timeout for moderate operations.
func Medium() time.Duration { return load().Medium }

// Long returns the timeout for background work.
func Long() time.Duration { return load().Long }

// Configure overrides the non-zero values in cfg.
func Configure(cfg Config) {
	next := load()
	if cfg.Ping > 0 {
		next.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		next.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		next.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		next.Long = cfg.Long
	}
	current.Store(&next)
}

// Reset restores all timeouts to defaults.
func Reset() {
	d := defaults()
	current.Store(&d)
}

// Current returns the current timeout configuration.
func Current() Config { return load() }

// ConfigureFromEnv reads DEVCANVAS_TIMEOUT_{PING,SHORT,MEDIUM,LONG} and
// returns how many values were applied.
func ConfigureFromEnv() int {
	var cfg Config
	applied := 0
	for name, dst := range map[string]*time.Duration{
		"PING":   &cfg.Ping,
		"SHORT":  &cfg.Short,
		"MEDIUM": &cfg.Medium,
		"LONG":   &cfg.Long,
	} {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			applied++
		}
	}
	Configure(cfg)
	return applied
}

// ShortCtx derives a context bounded by Short().
func ShortCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, Short())
}

// MediumCtx derives a context bounded by Medium().
func MediumCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, Medium())
}

// WithTimeout creates a context with timeout and logs when the deadline fired
// before cancel was called.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
