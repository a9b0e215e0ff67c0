package epi

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every configuration error raised before a
// run starts.
var ErrConfiguration = errors.New("epi: invalid configuration")

// ConfigError describes one invalid model input.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) hold for any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
