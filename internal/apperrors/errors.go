// Package apperrors defines the error taxonomy shared by the resilience layer.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientBackend marks a failed probe or outbound call. It drives status
	// demotion in the balancer and is never surfaced as a fatal error.
	ErrTransientBackend = errors.New("transient backend error")
	// ErrCacheBackendUnavailable marks an unreachable L2 store.
	ErrCacheBackendUnavailable = errors.New("cache backend unavailable")
	// ErrJobHandler marks a failed job handler invocation.
	ErrJobHandler = errors.New("job handler error")
	// ErrConfiguration marks invalid thresholds or capacities at construction.
	ErrConfiguration = errors.New("invalid configuration")
)

// ConfigurationError describes an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// BackendError wraps a failed call to a backend target.
type BackendError struct {
	TargetID string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.TargetID, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransientBackend.
func (e *BackendError) Is(target error) bool {
	return target == ErrTransientBackend
}

// CacheBackendError wraps a failed L2 operation.
type CacheBackendError struct {
	Op  string
	Err error
}

func (e *CacheBackendError) Error() string {
	return fmt.Sprintf("cache l2 %s: %v", e.Op, e.Err)
}

func (e *CacheBackendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCacheBackendUnavailable.
func (e *CacheBackendError) Is(target error) bool {
	return target == ErrCacheBackendUnavailable
}

// JobHandlerError wraps an error returned (or a panic raised) by a job handler.
type JobHandlerError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *JobHandlerError) Error() string {
	return fmt.Sprintf("job %s attempt %d: %v", e.JobID, e.Attempt, e.Err)
}

func (e *JobHandlerError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrJobHandler.
func (e *JobHandlerError) Is(target error) bool {
	return target == ErrJobHandler
}
