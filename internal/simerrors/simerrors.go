// Package simerrors defines the engine's own error kinds, following
// internal/logic's convention of sentinel errors wrapped with context via
// fmt.Errorf's %w rather than a bespoke error-code type. TransientIO, the
// fourth kind named alongside these, belongs to the persistence collaborator
// (internal/store) and is intentionally not defined here.
package simerrors

import (
	"errors"
	"fmt"
)

// ErrConfigError is a malformed scenario configuration: missing required
// keys, probabilities out of range. Surfaced at run start; prevents a run
// from entering RunRunning.
var ErrConfigError = errors.New("config error")

// ErrDomainError is a violation of an engine invariant (e.g. clicks >
// impressions). Treated as a bug: abort the day, preserve prior days.
var ErrDomainError = errors.New("domain error")

// ErrResourceExhausted is a host-imposed limit (memory/time) hit mid-run.
// Propagated to the caller; the orchestrator reports partial progress via
// the run's CurrentDay.
var ErrResourceExhausted = errors.New("resource exhausted")

// ConfigError wraps ErrConfigError with the offending scenario field.
func ConfigError(field string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigError, field, cause)
	}
	return fmt.Errorf("%w: %s", ErrConfigError, field)
}

// DomainError wraps ErrDomainError with the violated invariant's description.
func DomainError(invariant string) error {
	return fmt.Errorf("%w: %s", ErrDomainError, invariant)
}

// ResourceExhausted wraps ErrResourceExhausted with which limit was hit.
func ResourceExhausted(limit string) error {
	return fmt.Errorf("%w: %s", ErrResourceExhausted, limit)
}

// IsConfigError reports whether err is (or wraps) ErrConfigError.
func IsConfigError(err error) bool { return errors.Is(err, ErrConfigError) }

// IsDomainError reports whether err is (or wraps) ErrDomainError.
func IsDomainError(err error) bool { return errors.Is(err, ErrDomainError) }

// IsResourceExhausted reports whether err is (or wraps) ErrResourceExhausted.
func IsResourceExhausted(err error) bool { return errors.Is(err, ErrResourceExhausted) }
