package retry

import (
	"context"
	"math"
	"time"
)

// DefaultDelay is the pause between attempts on the same item
const DefaultDelay = 5 * time.Second

// Policy decides what happens after a failed attempt. failures is the
// number of consecutive failed attempts for the item so far (>= 1).
type Policy interface {
	Next(failures int) (delay time.Duration, retry bool)
}

// Fixed retries forever with a constant delay
type Fixed struct {
	Delay time.Duration
}

func (f Fixed) Next(int) (time.Duration, bool) {
	return f.Delay, true
}

// Backoff retries forever, doubling the delay after each failure up to Max
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Next(failures int) (time.Duration, bool) {
	if failures < 1 {
		failures = 1
	}
	delay := time.Duration(float64(b.Base) * math.Pow(2, float64(failures-1)))
	if delay > b.Max || delay <= 0 {
		delay = b.Max
	}
	return delay, true
}

// Limit stops retrying once max attempts have failed
type Limit struct {
	Policy      Policy
	MaxAttempts int
}

func (l Limit) Next(failures int) (time.Duration, bool) {
	if failures >= l.MaxAttempts {
		return 0, false
	}
	return l.Policy.Next(failures)
}

// New builds the policy from configuration. A zero backoffMax keeps the
// fixed delay; a zero maxAttempts retries forever.
func New(delay, backoffMax time.Duration, maxAttempts int) Policy {
	var p Policy = Fixed{Delay: delay}
	if backoffMax > delay {
		p = Backoff{Base: delay, Max: backoffMax}
	}
	if maxAttempts > 0 {
		p = Limit{Policy: p, MaxAttempts: maxAttempts}
	}
	return p
}

// Wait sleeps for d or until ctx is done
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
