// Package hash hashes and verifies low-entropy secrets such as account PINs.
//
// Only the encoded hash is stored. Both implementations first key the PIN
// with an HMAC-SHA256 of a pepper that lives in configuration, never next to
// the hashes.
package hash
