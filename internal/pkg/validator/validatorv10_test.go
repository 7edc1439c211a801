package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type input struct {
	AccountID string `validate:"required,account_id"`
	PIN       string `validate:"required,pin"`
	Code      string `validate:"omitempty,numeric,len=6"`
}

func TestV10Validator_Validate(t *testing.T) {
	t.Parallel()

	v, err := NewV10Validator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		in     input
		fields []string
	}{
		{name: "valid", in: input{AccountID: "alice-01", PIN: "1234", Code: "123456"}},
		{name: "admin style pin", in: input{AccountID: "admin", PIN: "admin"}},
		{name: "missing account", in: input{PIN: "1234"}, fields: []string{"account_id"}},
		{name: "bad account chars", in: input{AccountID: "al ice", PIN: "1234"}, fields: []string{"account_id"}},
		{name: "short pin", in: input{AccountID: "alice", PIN: "12"}, fields: []string{"pin"}},
		{name: "pin with space", in: input{AccountID: "alice", PIN: "12 34"}, fields: []string{"pin"}},
		{name: "bad code", in: input{AccountID: "alice", PIN: "1234", Code: "12ab56"}, fields: []string{"code"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Act
			err := v.Validate(tt.in)

			// Assert
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr V10ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Values(), f)
			}
		})
	}
}

func TestV10Validator_Messages(t *testing.T) {
	t.Parallel()

	v, err := NewV10Validator()
	require.NoError(t, err)

	err = v.Validate(input{AccountID: "alice", PIN: "1"})

	var verr V10ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "PIN must be 4-64 characters without spaces", verr["pin"])
	assert.Contains(t, verr.Error(), "pin")
	assert.Equal(t, "validation error", V10ValidationError{}.Error())
}
