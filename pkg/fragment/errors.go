package fragment

import (
	"errors"
	"fmt"
)

// ConfigError reports a request whose options or topology cannot be served.
// It is never retried and never degraded to an empty result.
type ConfigError struct {
	msg string
}

// ConfigErrorf returns a ConfigError with a formatted message.
func ConfigErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// IsConfigError reports whether err, or any error it wraps, is a ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}
