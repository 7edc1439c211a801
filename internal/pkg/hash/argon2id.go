package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Argon2Params are the Argon2id cost parameters written into every hash.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params uses 32 MiB, 3 passes and 2 lanes.
var DefaultArgon2Params = Argon2Params{MemoryKiB: 32 * 1024, Iterations: 3, Parallelism: 2}

func (p Argon2Params) withDefaults() Argon2Params {
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultArgon2Params.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultArgon2Params.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultArgon2Params.Parallelism
	}

	return p
}

// Argon2id implements Hash using Argon2id over the peppered PIN.
type Argon2id struct {
	params Argon2Params
	pepper string
}

// NewArgon2id returns an Argon2id hasher. Zero fields of params take the
// DefaultArgon2Params value.
func NewArgon2id(params Argon2Params, pepper string) *Argon2id {
	return &Argon2id{params: params.withDefaults(), pepper: pepper}
}

// Hash returns the PHC-style encoding $argon2id$v=..$m=..,t=..,p=..$salt$key.
func (a *Argon2id) Hash(plaintext string) ([]byte, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("hash: generate salt: %w", err)
	}

	p := a.params
	key := argon2.IDKey(peppered(plaintext, a.pepper), salt, p.Iterations, p.MemoryKiB, p.Parallelism, argon2KeyLen)

	return fmt.Appendf(nil, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2id) Verify(hashed, plaintext string) bool {
	if plaintext == "" {
		return false
	}

	dec, ok := decodeArgon2(hashed)
	if !ok {
		return false
	}

	p := dec.params
	key := argon2.IDKey(peppered(plaintext, a.pepper), dec.salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(dec.key)))

	return subtle.ConstantTimeCompare(dec.key, key) == 1
}

// NeedsRehash reports whether hashed uses other parameters than a, or cannot
// be decoded.
func (a *Argon2id) NeedsRehash(hashed string) bool {
	dec, ok := decodeArgon2(hashed)

	return !ok || dec.params != a.params
}

type argon2Hash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeArgon2(hashed string) (argon2Hash, bool) {
	var out argon2Hash

	parts := strings.Split(hashed, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return out, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return out, false
	}

	p := &out.params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &p.Parallelism); err != nil {
		return out, false
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return out, false
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return out, false
	}

	return out, true
}
