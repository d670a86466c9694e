package delivery

import (
	"math/rand"
	"time"
)

/* Policy decides whether a failed delivery is retried, and when
 * The decision is deterministic given (attempts, class) once the
 * jitter source is injected, so it is unit-testable without delays
 */
type Policy struct {
	base   time.Duration
	cap    time.Duration
	jitter JitterFunc
}

/* JitterFunc maps a computed backoff delay to the actual delay
 * The default spreads retries over [d/2, d) to avoid thundering-herd
 * retries against the same destination
 */
type JitterFunc func(d time.Duration) time.Duration

// Decision is the outcome of a retry evaluation for one failed attempt
type Decision struct {
	Retry bool
	Delay time.Duration
}

// PolicyOption configures a Policy
type PolicyOption func(*Policy)

// WithJitter overrides the jitter source (used by tests for determinism)
func WithJitter(j JitterFunc) PolicyOption {
	return func(p *Policy) {
		p.jitter = j
	}
}

// NewPolicy creates a retry policy with exponential backoff between base and cap
func NewPolicy(base, cap time.Duration, opts ...PolicyOption) *Policy {
	p := &Policy{
		base:   base,
		cap:    cap,
		jitter: defaultJitter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

/* Decide evaluates a failed attempt
 * Non-retryable failure classes abandon immediately regardless of the
 * remaining budget; retryable classes retry until attempts reach max,
 * waiting base * 2^(attempts-1) capped at the maximum delay
 */
func (p *Policy) Decide(attempts, maxAttempts int, class FailureClass) Decision {
	if !class.Retryable() {
		return Decision{Retry: false}
	}
	if attempts >= maxAttempts {
		return Decision{Retry: false}
	}

	delay := p.base << (attempts - 1)
	if delay > p.cap || delay <= 0 {
		// the shift overflows for large attempt counts
		delay = p.cap
	}

	return Decision{Retry: true, Delay: p.jitter(delay)}
}

/* defaultJitter returns a delay in [d/2, d)
 * The lower bound of attempt k+1 equals the upper bound of attempt k,
 * keeping the delay sequence non-decreasing
 */
func defaultJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
