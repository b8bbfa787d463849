package utils

import (
	"context"
	"time"
)

type Backoff struct {
	base       time.Duration
	max        time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	if base <= 0 {
		base = time.Second
	}
	return Backoff{base: base, max: 60 * base, maxRetries: maxRetries}
}

func (b Backoff) Retries() int { return b.maxRetries }

// Delay es exponencial con tope.
func (b Backoff) Delay(i int) time.Duration {
	if i < 0 {
		i = 0
	}
	if i > 30 {
		return b.max
	}
	d := time.Duration(1<<i) * b.base
	if d > b.max || d <= 0 {
		d = b.max
	}
	return d
}

// Wait sleeps for Delay(i) unless ctx ends first.
func (b Backoff) Wait(ctx context.Context, i int) error {
	t := time.NewTimer(b.Delay(i))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
