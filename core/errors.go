package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokerClosed is returned when operations are attempted on a closed broker.
	ErrBrokerClosed = errors.New("dispatchmux: broker is closed")

	// ErrNoBroker is returned when a dispatcher is created without a broker.
	ErrNoBroker = errors.New("dispatchmux: broker is nil")

	// ErrNoRouter is returned when Start is called before a router is attached.
	ErrNoRouter = errors.New("dispatchmux: no router attached")

	// ErrAlreadyStarted is returned when Start is called on a running dispatcher.
	ErrAlreadyStarted = errors.New("dispatchmux: dispatcher already started")

	// ErrUnknownEndpoint is returned when a router publishes to an endpoint
	// that is not in the dispatcher's configured name lists. This indicates
	// configuration drift, not a routable condition.
	ErrUnknownEndpoint = errors.New("dispatchmux: unknown endpoint")
)

// ConfigError reports an invalid configuration: a missing required key,
// a malformed routing rule, or wrong cardinality. Fatal at startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dispatchmux: config error: %s", e.Reason)
}

// NewConfigError creates a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
