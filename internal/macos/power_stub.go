//go:build !darwin

package macos

import "fmt"

// PowerAssertion is a no-op off macOS
type PowerAssertion struct{}

// NewPowerAssertion always fails off macOS; callers treat the error as
// "feature unavailable" and continue.
func NewPowerAssertion(reason string) (*PowerAssertion, error) {
	return nil, fmt.Errorf("power assertions are only supported on macOS")
}

// Release is a no-op
func (p *PowerAssertion) Release() error { return nil }

// IsActive always reports false
func (p *PowerAssertion) IsActive() bool { return false }
