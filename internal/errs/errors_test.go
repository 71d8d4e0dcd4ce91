package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	err := Config("register", ErrRegistryFrozen)

	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	assert.Equal(t, "configuration error: register: controller registry is frozen", err.Error())

	wrapped := fmt.Errorf("setup: %w", err)
	assert.True(t, IsConfigError(wrapped))
	assert.False(t, IsBackendError(wrapped))
}

func TestConfigNil(t *testing.T) {
	assert.NoError(t, Config("noop", nil))
	assert.NoError(t, Backend("noop", "key", nil))
}

func TestConfigf(t *testing.T) {
	err := Configf("", "bad value %d", 3)
	assert.Equal(t, "configuration error: bad value 3", err.Error())
}

func TestBackendError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Backend("delete", "alice", cause)

	assert.True(t, IsBackendError(err))
	assert.False(t, IsConfigError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `delete "alice": connection refused`, err.Error())
}
