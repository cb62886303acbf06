package guard

import (
	"context"
	"time"
)

const (
	// DefaultMaxRetries is how many times Retry re-attempts after the
	// initial call.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the base wait between attempts.
	DefaultRetryDelay = time.Second
)

// RetryConfig controls Retry. Zero fields take the defaults above.
type RetryConfig struct {
	// MaxRetries is the number of re-attempts after the initial one.
	MaxRetries int
	// Delay is the base backoff; the wait before retry n is Delay * n.
	Delay time.Duration
	// CacheKey, when non-empty, stores the successful result and serves
	// the stale value on exhaustion in preference to the fallback.
	CacheKey string
}

// Retry executes op with linear backoff under the scope's protection.
// Every failed attempt is forwarded to the interceptor (the suppression
// window collapses identical repeats). The wait before retry n is
// Delay * n; no overall deadline is enforced beyond ctx, which callers
// compose externally.
//
// Retry aborts early with fallback when the scope unmounts between
// attempts or ctx is canceled during a wait. On exhaustion a previously
// cached value under CacheKey is preferred over fallback.
func Retry[T any](ctx context.Context, s *Scope, fallback T, op func(context.Context) (T, error), cfg RetryConfig) T {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultRetryDelay
	}
	if op == nil || !s.Mounted() {
		return fallback
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 1; ; attempt++ {
		value, trace, err := runContained(func() (T, error) { return op(ctx) })
		if !s.Mounted() {
			return fallback
		}
		if err == nil {
			if cfg.CacheKey != "" {
				s.cachePut(cfg.CacheKey, value)
			}
			return value
		}
		s.forward(err, trace)
		if attempt > cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * cfg.Delay):
		case <-ctx.Done():
			return fallback
		}
		if !s.Mounted() {
			return fallback
		}
	}

	if cfg.CacheKey != "" {
		if cached, ok := s.cacheGet(cfg.CacheKey); ok {
			if typed, ok := cached.(T); ok {
				return typed
			}
		}
	}
	return fallback
}
