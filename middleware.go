package xtap

import (
	"context"
	"math/rand/v2"
	"time"
)

// ExportFunc ships a batch of records; Exporter.Export satisfies it.
type ExportFunc func(ctx context.Context, recs ...Record) error

// Middleware decorates an ExportFunc. A Dispatcher runs its exporter through
// the configured chain.
type Middleware func(next ExportFunc) ExportFunc

// RetryConfig controls retry behavior for exports.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first one.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt.
	Backoff func(attempt int) time.Duration
	// RetryIf reports whether err should be retried. Nil retries everything.
	RetryIf func(err error) bool
	// Jitter adds up to Jitter of random delay to each wait.
	Jitter time.Duration
}

// RetryMiddleware retries failed exports, bounded by MaxAttempts and ctx.
func RetryMiddleware(cfg RetryConfig) Middleware {
	attempts := max(cfg.MaxAttempts, 1)
	shouldRetry := cfg.RetryIf
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}
	return func(next ExportFunc) ExportFunc {
		return func(ctx context.Context, recs ...Record) error {
			var lastErr error
			for i := 1; i <= attempts; i++ {
				if lastErr = next(ctx, recs...); lastErr == nil {
					return nil
				}
				if ctx.Err() != nil || i == attempts || !shouldRetry(lastErr) {
					return lastErr
				}
				if cfg.Backoff == nil {
					continue
				}
				wait := cfg.Backoff(i)
				if cfg.Jitter > 0 {
					wait += rand.N(cfg.Jitter)
				}
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return lastErr
				case <-t.C:
				}
			}
			return lastErr
		}
	}
}

// TimeoutMiddleware bounds a single export. A non-positive d is a no-op.
func TimeoutMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next ExportFunc) ExportFunc { return next }
	}
	return func(next ExportFunc) ExportFunc {
		return func(ctx context.Context, recs ...Record) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(tctx, recs...)
		}
	}
}

// RecoveryMiddleware turns an exporter panic into a *PanicError.
func RecoveryMiddleware() Middleware {
	return func(next ExportFunc) ExportFunc {
		return func(ctx context.Context, recs ...Record) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = panicError(r)
				}
			}()
			return next(ctx, recs...)
		}
	}
}

// Chain composes mws around fn; the first middleware is the outermost.
func Chain(fn ExportFunc, mws ...Middleware) ExportFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			fn = mws[i](fn)
		}
	}
	return fn
}

