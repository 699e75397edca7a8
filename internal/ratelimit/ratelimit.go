// Package ratelimit throttles outbound provider calls.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// Limiter is a named token bucket configured in requests per minute.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New creates a limiter allowing perMinute calls, bursting up to a tenth of
// that (at least 1). A non-positive rate disables limiting.
func New(name string, perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{name: name, limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), max(perMinute/10, 1)),
	}
}

// Name returns the limiter name used in errors.
func (l *Limiter) Name() string {
	return l.name
}

// Wait blocks until a token is available. A cancelled context, or a deadline
// that ends before the next token, yields RATE_LIMIT_EXCEEDED.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext(l.name+" rate limit"))
	}
	return nil
}
