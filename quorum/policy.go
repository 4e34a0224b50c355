package quorum

import (
	"fmt"
)

// Mode defines how replies are turned into an outcome.
type Mode int

const (
	// Threshold resolves with success as soon as the required number of
	// successful replies is collected, and with a failure as soon as success
	// becomes unreachable.
	Threshold Mode = iota

	// First resolves on the first reply received, either success or failure.
	First
)

// String returns string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Threshold:
		return "threshold"
	case First:
		return "first"
	default:
		return ""
	}
}

// Policy is the aggregation rule of one operation kind: how many replies are
// expected from the group and how many of them must succeed.
type Policy struct {
	Mode     Mode
	Required int
	Expected int
}

// FirstOf resolves on the first of n expected replies.
func FirstOf(n int) Policy {
	return Policy{Mode: First, Required: 1, Expected: n}
}

// AtLeast needs k successful replies out of n.
func AtLeast(k, n int) Policy {
	return Policy{Mode: Threshold, Required: k, Expected: n}
}

// Majority needs n/2+1 successful replies out of n.
func Majority(n int) Policy {
	return AtLeast(n/2+1, n)
}

// AllOf needs every one of n replies to succeed.
func AllOf(n int) Policy {
	return AtLeast(n, n)
}

// Validate checks that the policy can ever be satisfied.
func (p Policy) Validate() error {
	if p.Required < 1 {
		return fmt.Errorf("required count must be positive, got %d", p.Required)
	}

	if p.Expected < p.Required {
		return fmt.Errorf("expected count %d is less than required count %d", p.Expected, p.Required)
	}

	return nil
}

// Unreachable reports whether success can no longer be reached once the given
// number of failures has been collected.
func (p Policy) Unreachable(failures int) bool {
	return failures > p.Expected-p.Required
}

func (p Policy) String() string {
	return fmt.Sprintf("%s(%d/%d)", p.Mode, p.Required, p.Expected)
}
