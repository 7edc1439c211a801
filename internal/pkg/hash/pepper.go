package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// peppered keys plaintext with an HMAC-SHA256 of the pepper. The base64
// result is 44 bytes, which keeps long PINs under bcrypt's 72 byte limit.
func peppered(plaintext, pepper string) []byte {
	if pepper == "" {
		return []byte(plaintext)
	}

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(plaintext))
	sum := mac.Sum(nil)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)

	return out
}
