package fetcher

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Strategy selects how the delay between attempts grows.
type Strategy string

const (
	// Linear waits attempt*Base after the attempt-th failure.
	Linear Strategy = "linear"
	// Exponential waits 2^(attempt-1)*Base after the attempt-th failure.
	Exponential Strategy = "exponential"
)

// Policy describes how many attempts a fetch gets and how long to wait
// between them. The delay is never applied after the final attempt.
type Policy struct {
	Strategy    Strategy      `mapstructure:"strategy"`
	Base        time.Duration `mapstructure:"base"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// LinearPolicy is used for the public procurement endpoints: 2s then 4s.
func LinearPolicy() Policy {
	return Policy{Strategy: Linear, Base: 2 * time.Second, MaxAttempts: 3}
}

// ExponentialPolicy is used for partner detail calls: 1s then 2s.
func ExponentialPolicy() Policy {
	return Policy{Strategy: Exponential, Base: time.Second, MaxAttempts: 3}
}

// Validate reports configuration mistakes.
func (p Policy) Validate() error {
	switch p.Strategy {
	case Linear, Exponential:
	default:
		return fmt.Errorf("unknown backoff strategy %q", p.Strategy)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Base < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	return nil
}

// Backoff returns the wait after the given 1-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var delay time.Duration
	switch p.Strategy {
	case Exponential:
		delay = time.Duration(float64(p.Base) * math.Pow(2, float64(attempt-1)))
	default:
		delay = time.Duration(attempt) * p.Base
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
