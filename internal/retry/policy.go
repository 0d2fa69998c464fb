// Package retry provides the backoff policy the daemon applies when the
// profile source is temporarily unreadable. Invocation failures are never
// retried here; those go through the pivot retention rule.
package retry

import (
	"time"
)

// BackoffMode selects the delay growth strategy.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// Policy encapsulates backoff settings for transient fetch failures.
// It is immutable after construction.
type Policy struct {
	Mode    BackoffMode
	Initial time.Duration // base delay
	Max     time.Duration // cap for growth
}

// DefaultPolicy returns a sensible default (linear, 5s initial, 2m cap).
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffLinear, Initial: 5 * time.Second, Max: 2 * time.Minute}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall
// back to defaults.
func NewPolicy(mode BackoffMode, initial, max time.Duration) Policy {
	p := DefaultPolicy()
	if initial > 0 {
		p.Initial = initial
	}
	if max > 0 {
		p.Max = max
	}
	switch mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = mode
	case "":
		// keep default
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given consecutive failure count
// (1-based: first failure => 1). Growth is capped at Max; the daemon keeps
// polling at the cap instead of ever giving up.
func (p Policy) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		if failures > 20 {
			return p.Max
		}
		d := p.Initial * (1 << (failures - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(failures) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// ValidMode reports whether s names a known backoff mode.
func ValidMode(s string) bool {
	switch BackoffMode(s) {
	case BackoffFixed, BackoffLinear, BackoffExponential, "":
		return true
	}
	return false
}

func (m BackoffMode) String() string { return string(m) }
