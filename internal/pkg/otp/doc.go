// Package otp provides helpers for generating and verifying time-based
// one-time passwords (RFC 6238).
//
// A secret is generated once per account, handed to an authenticator app via
// a provisioning URI, and afterwards every login supplies a 6 digit code that
// is checked against the secret at the current time.
package otp
