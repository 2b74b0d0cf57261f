package pipeline

import (
	"context"
	"math/rand/v2"
	"time"
)

// minDelayFloor is the hard lower bound on the gap between consecutive
// browser interactions. Configuration can only raise it.
const minDelayFloor = 2 * time.Second

// Limiter paces the driver loop: each Wait sleeps the minimum delay plus
// a uniform random jitter so request timing does not form a fingerprint.
type Limiter struct {
	min    time.Duration
	jitter time.Duration

	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter builds a limiter, clamping min up to the floor.
func NewLimiter(min, jitter time.Duration) *Limiter {
	if min < minDelayFloor {
		min = minDelayFloor
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Limiter{
		min:    min,
		jitter: jitter,
		rand:   rand.Float64,
		sleep:  sleepCtx,
	}
}

// Wait blocks for min + uniform(0, jitter), or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	d := l.min + time.Duration(l.rand()*float64(l.jitter))
	return l.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
