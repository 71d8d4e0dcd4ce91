// Package errs defines the error taxonomy shared by the reconciliation engine.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when no controller is registered for a document kind.
	ErrUnknownKind = errors.New("unknown resource kind")

	// ErrUnsupportedMode is returned when a controller does not accept the requested mode.
	ErrUnsupportedMode = errors.New("unsupported reconciliation mode")

	// ErrRegistryFrozen is returned when registering after initialization finished.
	ErrRegistryFrozen = errors.New("controller registry is frozen")

	// ErrInvalidSelector is returned for malformed selector expressions.
	ErrInvalidSelector = errors.New("invalid selector")
)

// ConfigError reports invalid setup: bad configuration, unsupported mode,
// malformed selector. It aborts a reconciliation before any backend call.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config wraps err as a ConfigError. Returns nil if err is nil.
func Config(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Op: op, Err: err}
}

// Configf builds a ConfigError from a format string.
func Configf(op, format string, args ...any) error {
	return &ConfigError{Op: op, Err: fmt.Errorf(format, args...)}
}

// IsConfigError checks if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// BackendError wraps a failure returned by a remote call made for one change.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Backend wraps err as a BackendError. Returns nil if err is nil.
func Backend(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Key: key, Err: err}
}

// IsBackendError checks if err is or wraps a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
