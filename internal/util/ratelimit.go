package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly at a fixed rate. Each Wait reserves the next
// free slot and sleeps until it arrives, so concurrent callers are served in
// reservation order.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // earliest time the next slot may be taken
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute calls per minute.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{now: time.Now}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// reserve claims the next slot and returns how long the caller must wait
// for it.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	slot := rl.next
	if slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.interval)
	return slot.Sub(now)
}

// Wait blocks until the caller's slot arrives or ctx is done. A slot given up
// on cancellation is not returned to the limiter.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := rl.reserve()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
