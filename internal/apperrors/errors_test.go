package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name   string
		err    error
		kind   error
		unwrap bool
	}{
		{
			name: "configuration error",
			err:  NewConfigurationError("cache.l1_capacity", "must be positive"),
			kind: ErrConfiguration,
		},
		{
			name:   "backend error",
			err:    &BackendError{TargetID: "api-1", Err: cause},
			kind:   ErrTransientBackend,
			unwrap: true,
		},
		{
			name:   "cache backend error",
			err:    &CacheBackendError{Op: "get", Err: cause},
			kind:   ErrCacheBackendUnavailable,
			unwrap: true,
		},
		{
			name:   "job handler error",
			err:    &JobHandlerError{JobID: "job-1", Attempt: 2, Err: cause},
			kind:   ErrJobHandler,
			unwrap: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
			if tt.unwrap {
				assert.ErrorIs(t, wrapped, cause)
			}
		})
	}
}

func TestConfigurationError_Message(t *testing.T) {
	err := NewConfigurationError("router.targets", "duplicate id \"a\"")

	assert.Equal(t, `configuration: router.targets: duplicate id "a"`, err.Error())

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &cfgErr))
	assert.Equal(t, "router.targets", cfgErr.Field)
}
