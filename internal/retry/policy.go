// Package retry provides the backoff policy used by the sync engine and
// the HTTP client for transient failures.
package retry

import (
	"fmt"
	"time"
)

// BackoffMode selects how delays grow across consecutive failures.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Policy encapsulates retry/backoff settings. Immutable after construction.
type Policy struct {
	Mode       BackoffMode   // fixed|linear|exponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // retries after the first failure; <0 means unbounded
}

// DefaultPolicy returns the sync engine's default: exponential, 1s initial,
// 60s cap, unbounded retries (the polling loop never gives up, it only
// spaces out).
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffExponential, Initial: time.Second, Max: 60 * time.Second, MaxRetries: -1}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values
// fall back to defaults.
func NewPolicy(mode BackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = mode
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given failure streak
// (1-based: first retry => 1). Zero or negative streaks yield no delay.
func (p Policy) Delay(streak int) time.Duration {
	if streak <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffLinear:
		d := time.Duration(streak) * p.Initial
		return min(d, p.Max)
	default: // exponential
		if streak > 30 { // avoid shift overflow, cap dominates anyway
			return p.Max
		}
		d := p.Initial * (1 << (streak - 1))
		if d <= 0 || d > p.Max {
			return p.Max
		}
		return d
	}
}

// Exhausted reports whether the policy allows no further retries after the
// given number of failures.
func (p Policy) Exhausted(failures int) bool {
	return p.MaxRetries >= 0 && failures > p.MaxRetries
}

// Validate ensures invariants; returns an error for an unusable policy.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.Initial > p.Max {
		return fmt.Errorf("initial must not exceed max")
	}
	switch p.Mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		return nil
	default:
		return fmt.Errorf("unknown backoff mode %q", p.Mode)
	}
}
