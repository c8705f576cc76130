package httpclient

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ensure our backoff strategies implement the backoff.BackOff interface.
var (
	_ backoff.BackOff = (*LinearBackOff)(nil)
	_ backoff.BackOff = (*DecorrelatedJitterBackOff)(nil)
	_ backoff.BackOff = (*ConstantBackOffWithJitter)(nil)
)

// DefaultJitterFactor is applied to exponential policies.
const DefaultJitterFactor = 0.5

// BackOffPolicy builds a fresh backoff.BackOff for one retry session.
// Stateful strategies must not be shared between concurrent sessions.
type BackOffPolicy func() backoff.BackOff

// ExponentialPolicy doubles the wait from initial up to maxInterval, with
// DefaultJitterFactor randomization.
func ExponentialPolicy(initial, maxInterval time.Duration) BackOffPolicy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = maxInterval
		b.RandomizationFactor = DefaultJitterFactor
		b.Multiplier = 2
		return b
	}
}

// ConstantPolicy waits d before every attempt.
func ConstantPolicy(d time.Duration) BackOffPolicy {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// LinearPolicy uses NewLinearBackOff defaults with the given intervals.
func LinearPolicy(initial, increment, maxInterval time.Duration) BackOffPolicy {
	return func() backoff.BackOff {
		b := NewLinearBackOff()
		b.InitialInterval = initial
		b.Increment = increment
		b.MaxInterval = maxInterval
		return b
	}
}

// DecorrelatedJitterPolicy uses DecorrelatedJitterBackOff between base and cap.
func DecorrelatedJitterPolicy(base, capInterval time.Duration) BackOffPolicy {
	return func() backoff.BackOff {
		return &DecorrelatedJitterBackOff{Base: base, Cap: capInterval}
	}
}

// LinearBackOff increases interval by a fixed increment plus jitter.
//
// Interval calculation: base + (attempt × increment) ± jitter
//
// Example with Initial=1s, Increment=500ms, JitterFactor=0.3:
//
//	Attempt 1: 1.0s ± 0.3s = [0.7s, 1.3s]
//	Attempt 2: 1.5s ± 0.45s = [1.05s, 1.95s]
//	Attempt 3: 2.0s ± 0.6s = [1.4s, 2.6s]
type LinearBackOff struct {
	// InitialInterval is the first backoff interval.
	// Default: 500ms
	InitialInterval time.Duration

	// Increment is the fixed amount added to each subsequent interval.
	// Default: 500ms
	Increment time.Duration

	// MaxInterval caps the backoff interval.
	// Default: 30s
	MaxInterval time.Duration

	// JitterFactor adds randomization (0.0-1.0).
	// Default: 0.5 (±50% randomization)
	JitterFactor float64

	currentInterval time.Duration
	attempt         int
}

// NewLinearBackOff creates a LinearBackOff with defaults.
func NewLinearBackOff() *LinearBackOff {
	return &LinearBackOff{
		InitialInterval: 500 * time.Millisecond,
		Increment:       500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		JitterFactor:    0.5,
	}
}

// Reset resets the backoff to initial state.
func (b *LinearBackOff) Reset() {
	b.currentInterval = b.InitialInterval
	b.attempt = 0
}

// NextBackOff returns the next backoff interval with jitter applied.
func (b *LinearBackOff) NextBackOff() time.Duration {
	if b.currentInterval == 0 {
		b.currentInterval = b.InitialInterval
	}

	interval := applyJitter(b.currentInterval, b.JitterFactor)

	b.attempt++
	b.currentInterval = min(b.InitialInterval+time.Duration(b.attempt)*b.Increment, b.MaxInterval)

	return interval
}

// DecorrelatedJitterBackOff uses AWS-style decorrelated jitter:
//
//	sleep = random_between(base, min(cap, previous_sleep × 3))
//
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitterBackOff struct {
	// Base is the minimum backoff interval.
	// Default: 500ms
	Base time.Duration

	// Cap is the maximum backoff interval.
	// Default: 30s
	Cap time.Duration

	sleep time.Duration
}

// NewDecorrelatedJitterBackOff creates a DecorrelatedJitterBackOff with defaults.
func NewDecorrelatedJitterBackOff() *DecorrelatedJitterBackOff {
	return &DecorrelatedJitterBackOff{
		Base: 500 * time.Millisecond,
		Cap:  30 * time.Second,
	}
}

// Reset resets the backoff to initial state.
func (b *DecorrelatedJitterBackOff) Reset() {
	b.sleep = b.Base
}

// NextBackOff returns the next backoff interval using decorrelated jitter.
func (b *DecorrelatedJitterBackOff) NextBackOff() time.Duration {
	if b.sleep == 0 {
		b.sleep = b.Base
	}
	b.sleep = randomBetween(b.Base, min(b.sleep*3, b.Cap))
	return b.sleep
}

// ConstantBackOffWithJitter provides a fixed interval with randomization.
//
// Example with Interval=1s, JitterFactor=0.25:
// Each wait will be random between 0.75s and 1.25s.
type ConstantBackOffWithJitter struct {
	// Interval is the base backoff interval.
	// Default: 1s
	Interval time.Duration

	// JitterFactor adds randomization (0.0-1.0).
	// Default: 0.5
	JitterFactor float64
}

// NewConstantBackOffWithJitter creates a ConstantBackOffWithJitter with defaults.
func NewConstantBackOffWithJitter() *ConstantBackOffWithJitter {
	return &ConstantBackOffWithJitter{
		Interval:     1 * time.Second,
		JitterFactor: 0.5,
	}
}

// Reset is a no-op for constant backoff.
func (b *ConstantBackOffWithJitter) Reset() {}

// NextBackOff returns the interval with jitter applied.
func (b *ConstantBackOffWithJitter) NextBackOff() time.Duration {
	return applyJitter(b.Interval, b.JitterFactor)
}

// applyJitter returns a random duration in
// [interval*(1-jitterFactor), interval*(1+jitterFactor)].
func applyJitter(interval time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return interval
	}
	jitterFactor = min(jitterFactor, 1)

	delta := float64(interval) * jitterFactor
	minInterval := float64(interval) - delta

	//nolint:gosec // intentional weak rand for jitter (not cryptographic)
	return time.Duration(minInterval + rand.Float64()*2*delta)
}

// randomBetween returns a random duration in [minDur, maxDur).
//
//nolint:gosec // intentional weak rand for jitter (not cryptographic)
func randomBetween(minDur, maxDur time.Duration) time.Duration {
	if minDur >= maxDur {
		return minDur
	}
	return minDur + time.Duration(rand.Int64N(int64(maxDur-minDur)))
}
