package goerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBusinessCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("insufficient funds")
	err := NewBusinessCause("balance too low", cause, CodeFailedPrecondition)

	var ge *Error
	assert.True(t, errors.As(err, &ge))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "balance too low", ge.Msg())
	assert.Equal(t, TypeBusiness, ge.Type())
	assert.Equal(t, CodeFailedPrecondition, ge.Code())
	assert.Equal(t, 5, ge.ExitCode())
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "server", err: NewServer(errors.New("disk")), want: 1},
		{name: "validation", err: NewInvalidInput(nil, "amount", "required"), want: 2},
		{name: "unauthorized", err: NewBusinessCause("nope", nil, CodeUnauthorized), want: 3},
		{name: "locked", err: NewBusinessCause("locked", nil, CodeTooManyRequest), want: 4},
		{name: "wrapped", err: fmt.Errorf("ctx: %w", NewBusinessCause("missing", nil, CodeNotFound)), want: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestNewInvalidInput(t *testing.T) {
	t.Parallel()

	t.Run("fields from key value pairs", func(t *testing.T) {
		t.Parallel()

		err := NewInvalidInput(nil, "amount", "must be positive")

		var ge *Error
		assert.True(t, errors.As(err, &ge))
		assert.Equal(t, map[string]string{"amount": "must be positive"}, ge.Fields())
		assert.Equal(t, CodeInvalidInput, CodeOf(err))
	})

	t.Run("odd pairs become invalid format", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, CodeInvalidFormat, CodeOf(NewInvalidInput(nil, "amount")))
	})
}

func TestError_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "disk full", NewServer(errors.New("disk full")).Error())
	assert.Equal(t, "not allowed", NewBusinessCause("not allowed", nil, CodeForbidden).Error())
	assert.Equal(t, CodeInternal, CodeOf(errors.New("x")))
}
