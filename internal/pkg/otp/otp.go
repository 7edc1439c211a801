package otp

import (
	"bytes"
	"encoding/base32"
	"errors"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Default parameters shared with common authenticator apps.
const (
	DefaultPeriod = 30
	DefaultSkew   = 1
	secretSize    = 20
)

var (
	ErrSecretEncoding = errors.New("otp: secret is not valid base32")
	ErrSecretTooShort = errors.New("otp: secret is shorter than 160 bits")
)

// TOTP generates secrets and verifies codes using SHA1 with six digits.
type TOTP struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
}

// NewTOTP constructs a TOTP instance.
//
// A zero period falls back to 30 seconds and a zero skew to one step.
func NewTOTP(issuer string, period, skew uint) *TOTP {
	if period == 0 {
		period = DefaultPeriod
	}

	if skew == 0 {
		skew = DefaultSkew
	}

	return &TOTP{
		issuer: issuer,
		period: period,
		skew:   skew,
		digits: otp.DigitsSix,
	}
}

// Issuer returns the issuer label embedded in provisioning URIs.
func (o *TOTP) Issuer() string {
	return o.issuer
}

// GenerateSecret returns a fresh base32 secret (160 bits, no padding).
func (o *TOTP) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: o.issuer,
		Period:      o.period,
		SecretSize:  secretSize,
		Digits:      o.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}

	return key.Secret(), nil
}

// NormalizeSecret upper-cases secret and strips padding, then checks it
// decodes to at least as many bytes as GenerateSecret produces.
func (o *TOTP) NormalizeSecret(secret string) (string, error) {
	secret = strings.TrimRight(strings.ToUpper(strings.TrimSpace(secret)), "=")

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", ErrSecretEncoding
	}
	if len(raw) < secretSize {
		return "", ErrSecretTooShort
	}

	return secret, nil
}

// ProvisioningURI builds the otpauth URI consumed by authenticator apps:
//
//	otpauth://totp/<issuer>:<accountID>?secret=<secret>&issuer=<issuer>
func (o *TOTP) ProvisioningURI(secret, accountID string) string {
	u := url.URL{
		Scheme: "otpauth",
		Host:   "totp",
		Path:   "/" + o.issuer + ":" + accountID,
	}

	// url.Values.Encode sorts keys; keep secret before issuer.
	u.RawQuery = "secret=" + url.QueryEscape(secret) + "&issuer=" + url.QueryEscape(o.issuer)

	return u.String()
}

// QRCode renders the provisioning URI as a square PNG of size pixels.
func (o *TOTP) QRCode(secret, accountID string, size int) ([]byte, error) {
	key, err := otp.NewKeyFromURL(o.ProvisioningURI(secret, accountID))
	if err != nil {
		return nil, err
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Verify reports whether code is valid for secret at now, allowing the
// configured skew in both directions. An empty secret never verifies.
func (o *TOTP) Verify(secret, code string, now time.Time) bool {
	if secret == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})

	return ok && err == nil
}

// GenerateCode returns the code for secret at the given time.
func (o *TOTP) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    o.period,
		Skew:      o.skew,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
