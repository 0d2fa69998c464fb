package retry

import (
	"testing"
	"time"
)

func TestDelayModes(t *testing.T) {
	cases := []struct {
		name     string
		policy   Policy
		failures int
		want     time.Duration
	}{
		{"zero failures", DefaultPolicy(), 0, 0},
		{"fixed", Policy{Mode: BackoffFixed, Initial: time.Second, Max: time.Minute}, 5, time.Second},
		{"linear grows", Policy{Mode: BackoffLinear, Initial: time.Second, Max: time.Minute}, 3, 3 * time.Second},
		{"linear caps", Policy{Mode: BackoffLinear, Initial: time.Second, Max: 4 * time.Second}, 10, 4 * time.Second},
		{"exponential grows", Policy{Mode: BackoffExponential, Initial: time.Second, Max: time.Minute}, 4, 8 * time.Second},
		{"exponential caps", Policy{Mode: BackoffExponential, Initial: time.Second, Max: 10 * time.Second}, 30, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := tc.policy.Delay(tc.failures); got != tc.want {
			t.Errorf("%s: Delay(%d) = %v, want %v", tc.name, tc.failures, got, tc.want)
		}
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy("bogus-but-unchecked", 0, 0)
	def := DefaultPolicy()
	if p.Initial != def.Initial || p.Max != def.Max || p.Mode != def.Mode {
		t.Fatalf("fallbacks not applied: %+v", p)
	}

	p = NewPolicy(BackoffFixed, time.Minute, time.Second)
	if p.Initial != time.Second {
		t.Fatalf("initial should be clamped to max: %+v", p)
	}
}

func TestValidMode(t *testing.T) {
	for _, ok := range []string{"", "fixed", "linear", "exponential"} {
		if !ValidMode(ok) {
			t.Errorf("ValidMode(%q) = false", ok)
		}
	}
	if ValidMode("quadratic") {
		t.Errorf("unknown mode accepted")
	}
}
