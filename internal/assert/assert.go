// Package assert provides defensive precondition helpers.
// Violations are returned as errors rather than panics so callers can
// surface them through the normal error path.
package assert

import "fmt"

// Check returns an error if cond is false, formatted from msg and args.
func Check(cond bool, msg string, args ...interface{}) error {
	if cond {
		return nil
	}
	return fmt.Errorf("assertion failed: "+msg, args...)
}

// NotNil returns an error if v is nil. Use for required handles and
// injected dependencies at package boundaries.
func NotNil(v interface{}, name string) error {
	if v == nil {
		return fmt.Errorf("assertion failed: %s must not be nil", name)
	}
	return nil
}

// InRange returns an error if n is outside [lo, hi].
func InRange(n, lo, hi int, name string) error {
	if n < lo || n > hi {
		return fmt.Errorf("assertion failed: %s out of range: %d not in [%d, %d]", name, n, lo, hi)
	}
	return nil
}
