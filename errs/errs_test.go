package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionErrorMessage(t *testing.T) {
	t.Parallel()

	e := Connection("connect", -6, "authorization failed")
	assert.Equal(t, "connect: authorization failed (terminal error -6)", e.Error())

	bare := Connection("order_send", 0, "not connected")
	assert.Equal(t, "order_send: not connected", bare.Error())
}

func TestConnectionErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	e := &ConnectionError{Op: "connect", Err: cause}
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "refused")
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	e := Validation("volume", "must be positive, got %v", -0.1)
	assert.Equal(t, "volume: must be positive, got -0.1", e.Error())

	noField := &ValidationError{Reason: "builder already configured"}
	assert.Equal(t, "builder already configured", noField.Error())
}

func TestOrderErrorMessage(t *testing.T) {
	t.Parallel()

	e := &OrderError{Op: "order_send", Retcode: 10019, Message: "no money"}
	assert.Equal(t, "order_send: no money (retcode 10019)", e.Error())
}

func TestCategoryHelpers(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("add account: %w", Connection("connect", -10004, "no IPC"))
	assert.True(t, IsConnection(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsOrder(wrapped))

	assert.True(t, IsValidation(Validation("name", "already exists")))
	assert.True(t, IsOrder(fmt.Errorf("send: %w", &OrderError{Op: "order_send", Retcode: 10006, Message: "reject"})))
}
