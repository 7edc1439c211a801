package otp

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTP_Verify(t *testing.T) {
	t.Parallel()

	o := NewTOTP("LedgerGuard", 0, 0)
	secret, err := o.GenerateSecret()
	require.NoError(t, err)

	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	code, err := o.GenerateCode(secret, now)
	require.NoError(t, err)

	t.Run("valid at generation time", func(t *testing.T) {
		t.Parallel()
		assert.True(t, o.Verify(secret, code, now))
	})

	t.Run("valid within one step of skew", func(t *testing.T) {
		t.Parallel()
		assert.True(t, o.Verify(secret, code, now.Add(29*time.Second)))
		assert.True(t, o.Verify(secret, code, now.Add(-29*time.Second)))
	})

	t.Run("invalid 61 seconds later", func(t *testing.T) {
		t.Parallel()
		assert.False(t, o.Verify(secret, code, now.Add(61*time.Second)))
	})

	t.Run("empty secret never verifies", func(t *testing.T) {
		t.Parallel()
		assert.False(t, o.Verify("", code, now))
	})

	t.Run("wrong code", func(t *testing.T) {
		t.Parallel()
		wrong := "000000"
		if wrong == code {
			wrong = "111111"
		}
		assert.False(t, o.Verify(secret, wrong, now))
	})

	t.Run("malformed secret", func(t *testing.T) {
		t.Parallel()
		assert.False(t, o.Verify("not base32 !!", code, now))
	})
}

func TestTOTP_GenerateSecret(t *testing.T) {
	t.Parallel()

	o := NewTOTP("LedgerGuard", 30, 1)

	a, err := o.GenerateSecret()
	require.NoError(t, err)
	b, err := o.GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}

func TestTOTP_NormalizeSecret(t *testing.T) {
	t.Parallel()

	o := NewTOTP("LedgerGuard", 0, 0)

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr error
	}{
		{name: "generated length", secret: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP", want: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"},
		{name: "lower case with padding", secret: " jbswy3dpehpk3pxpjbswy3dpehpk3pxp== ", want: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"},
		{name: "forty bits", secret: "JBSWY3DP", wantErr: ErrSecretTooShort},
		{name: "not base32", secret: "JBSWY3DP!HPK3PXPJBSWY3DPEHPK3PX1", wantErr: ErrSecretEncoding},
		{name: "empty", secret: "", wantErr: ErrSecretTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := o.NormalizeSecret(tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTOTP_ProvisioningURI(t *testing.T) {
	t.Parallel()

	o := NewTOTP("LedgerGuard", 30, 1)

	uri := o.ProvisioningURI("JBSWY3DPEHPK3PXP", "alice")
	assert.Equal(t, "otpauth://totp/LedgerGuard:alice?secret=JBSWY3DPEHPK3PXP&issuer=LedgerGuard", uri)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Equal(t, "LedgerGuard", o.Issuer())
}

func TestTOTP_QRCode(t *testing.T) {
	t.Parallel()

	o := NewTOTP("Bank V2.0", 30, 1)

	b, err := o.QRCode("JBSWY3DPEHPK3PXP", "alice", 200)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}
