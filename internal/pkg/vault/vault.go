package vault

// Purpose identifies what a sealed value is used for.
type Purpose string

const (
	// PurposeTOTPSeed scopes sealing to an account's TOTP secret.
	PurposeTOTPSeed Purpose = "totp_seed"
	// PurposeSnapshot scopes sealing to a whole store snapshot.
	PurposeSnapshot Purpose = "store_snapshot"
)

// Scope binds a ciphertext to its owner and purpose.
type Scope struct {
	// Subject is the owner, an account id or a store name.
	Subject string
	// Purpose is the sealing purpose.
	Purpose Purpose
}

// Sealer encrypts and decrypts values for a scope.
type Sealer interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
}

// KeyProvider provides raw AES keys. For AES-256-GCM keys must be 32 bytes.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}
