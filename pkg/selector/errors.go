package selector

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates the job configuration could not be resolved.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidRunNumber indicates a non-positive run number.
	ErrInvalidRunNumber = errors.New("invalid run number")
)

// ConfigurationError describes an unresolvable configuration input.
type ConfigurationError struct {
	// Field names the input that could not be resolved (e.g. "search_path").
	Field string

	// Reason is a human-readable description.
	Reason string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func invalidRunNumber(n int64) error {
	return fmt.Errorf("%w: %d (must be > 0)", ErrInvalidRunNumber, n)
}
