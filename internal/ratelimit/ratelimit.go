package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Default spacing between two requests of one source
const (
	DefaultMin = 2 * time.Second
	DefaultMax = 3 * time.Second
)

// Waiter blocks until the next outbound request may be dispatched
type Waiter interface {
	Wait(ctx context.Context) error
}

// Limiter spaces requests by at least min, adding a uniform jitter up to max.
//
// The jitter sleep happens before the token is taken, so dispatch times are always
// separated by the token interval no matter how the jitter falls.
type Limiter struct {
	min     time.Duration
	max     time.Duration
	spacing *rate.Limiter
	jitter  func(n time.Duration) time.Duration
}

// New creates a limiter for the interval [min, max]
func New(min, max time.Duration) *Limiter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}

	limit := rate.Inf
	if min > 0 {
		limit = rate.Every(min)
	}

	return &Limiter{
		min:     min,
		max:     max,
		spacing: rate.NewLimiter(limit, 1),
		jitter: func(n time.Duration) time.Duration {
			if n <= 0 {
				return 0
			}
			return rand.N(n + 1)
		},
	}
}

// NewDefault creates a limiter with the 2-3s courtesy interval
func NewDefault() *Limiter {
	return New(DefaultMin, DefaultMax)
}

// Interval returns the configured bounds
func (l *Limiter) Interval() (time.Duration, time.Duration) {
	return l.min, l.max
}

// Wait sleeps a jittered delay then blocks until the spacing token is available.
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.jitter(l.max - l.min); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.spacing.Wait(ctx)
}

// Nop never blocks. Used in tests and for sources that are not rate limited.
type Nop struct{}

func (Nop) Wait(ctx context.Context) error {
	return ctx.Err()
}
