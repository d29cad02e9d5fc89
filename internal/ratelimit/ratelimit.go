// Package ratelimit enforces requests-per-minute ceilings on outbound calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Limiter is a sliding-window rate limiter. At most rpm calls to Wait
// return within any rolling one-minute window.
type Limiter struct {
	rpm int

	mu     sync.Mutex
	stamps []time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter allowing rpm requests per minute.
func New(rpm int) *Limiter {
	if rpm < 1 {
		rpm = 1
	}
	return &Limiter{
		rpm:   rpm,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait blocks until a request slot is available or ctx is cancelled.
// The lock is released across the sleep so concurrent waiters are not
// serialized behind a sleeping one.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.stamps) < l.rpm {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		// Wait for the oldest stamp to age out of the window.
		delay := l.stamps[0].Add(window).Sub(now)
		l.mu.Unlock()

		if delay <= 0 {
			continue
		}
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// prune drops timestamps older than the window. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// Pending returns the number of requests currently counted in the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
