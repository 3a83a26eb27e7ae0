package etl

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy describes bounded exponential backoff with jitter.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter maps the computed delay to the delay actually slept.
	// nil means FullJitter.
	Jitter func(time.Duration) time.Duration
	// Sleep waits for d or until ctx is done. nil means a timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// FullJitter picks a uniformly random delay in [0, d].
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

// NoJitter sleeps exactly the computed delay.
func NoJitter(d time.Duration) time.Duration { return d }

// Backoff returns the capped delay before retry number attempt (0-based),
// before jitter: min(BaseDelay * 2^attempt, MaxDelay).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if (p.MaxDelay > 0 && d >= p.MaxDelay) || d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Delay returns the jittered wait before retry number attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	jitter := p.Jitter
	if jitter == nil {
		jitter = FullJitter
	}
	return jitter(p.Backoff(attempt))
}

// Do calls fn until it succeeds, returns an error retry says not to retry,
// or MaxRetries retries have been spent. It returns the number of attempts
// made and the last error.
func (p RetryPolicy) Do(ctx context.Context, retry func(error) bool, fn func(attempt int) error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	attempts := 0
	for {
		err := fn(attempts)
		attempts++
		if err == nil {
			return attempts, nil
		}
		if !retry(err) || attempts > p.MaxRetries {
			return attempts, err
		}
		if serr := sleep(ctx, p.Delay(attempts-1)); serr != nil {
			return attempts, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
