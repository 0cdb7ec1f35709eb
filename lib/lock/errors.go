package lock

import "errors"

// ErrConfiguration matches every *ConfigurationError with errors.Is
var ErrConfiguration = errors.New("lock: invalid configuration")

// ConfigurationError is returned by Request for invalid options.
// It is returned before the lock manager is called.
type ConfigurationError struct {
	Msg string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "lock: " + e.Msg
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
