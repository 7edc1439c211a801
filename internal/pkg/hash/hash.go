package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash hashes plaintext secrets and verifies them against a stored hash.
type Hash interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool

	// NeedsRehash reports whether hashed should be replaced by a fresh Hash
	// because the configured parameters changed.
	NeedsRehash(hashed string) bool
}

// Supported drivers for New.
const (
	DriverBcrypt   = "bcrypt"
	DriverArgon2id = "argon2id"
)

// Options configures New.
type Options struct {
	Driver     string
	BcryptCost int
	Argon2     Argon2Params
	Pepper     string
}

// New returns the Hash implementation selected by opts.Driver. An empty
// driver selects bcrypt.
func New(opts Options) (Hash, error) {
	switch opts.Driver {
	case "", DriverBcrypt:
		cost := opts.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("hash: bcrypt cost %d out of range", cost)
		}
		return NewBcrypt(cost, opts.Pepper), nil
	case DriverArgon2id:
		return NewArgon2id(opts.Argon2, opts.Pepper), nil
	default:
		return nil, fmt.Errorf("hash: unknown driver %q", opts.Driver)
	}
}
