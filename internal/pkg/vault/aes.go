package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Ciphertext layout:
//
//	[0..1]   uint16 version
//	[2..13]  nonce
//	[14..]   gcm.Seal output (ciphertext + tag)
const (
	formatVersion uint16 = 1
	nonceSize            = 12
	keySize              = 32
	headerSize           = 2 + nonceSize
)

var (
	// ErrNotConfigured indicates a missing key provider.
	ErrNotConfigured = errors.New("vault: sealer not configured")
	// ErrEmptyPlaintext indicates an empty plaintext input.
	ErrEmptyPlaintext = errors.New("vault: plaintext is empty")
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("vault: invalid key length")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("vault: ciphertext too short")
	// ErrUnsupportedVersion indicates an unknown ciphertext version.
	ErrUnsupportedVersion = errors.New("vault: unsupported ciphertext version")
	// ErrOpenFailed indicates authentication of the ciphertext failed.
	ErrOpenFailed = errors.New("vault: open failed")
	// ErrMissingKey indicates the static key was not provided.
	ErrMissingKey = errors.New("vault: missing static key")
)

// AESGCM implements Sealer using AES-256-GCM.
type AESGCM struct {
	keys KeyProvider
}

// NewAESGCM constructs an AES-GCM sealer.
func NewAESGCM(keys KeyProvider) *AESGCM {
	return &AESGCM{keys: keys}
}

// Seal encrypts plaintext, binding the result to scope.
func (a *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmptyPlaintext
	}

	gcm, err := a.aead(scope)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize, headerSize+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[0:2], formatVersion)
	if _, err := io.ReadFull(rand.Reader, out[2:headerSize]); err != nil {
		return nil, fmt.Errorf("vault: nonce generation failed: %w", err)
	}

	return gcm.Seal(out, out[2:headerSize], plaintext, additionalData(scope)), nil
}

// Open decrypts ciphertext sealed for the same scope.
func (a *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) <= headerSize {
		return nil, ErrCiphertextTooShort
	}

	if v := binary.BigEndian.Uint16(ciphertext[0:2]); v != formatVersion {
		return nil, fmt.Errorf("vault: version %d: %w", v, ErrUnsupportedVersion)
	}

	gcm, err := a.aead(scope)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, ciphertext[2:headerSize], ciphertext[headerSize:], additionalData(scope))
	if err != nil {
		// wrong scope, wrong key and tampering are indistinguishable on purpose
		return nil, ErrOpenFailed
	}

	return plain, nil
}

func (a *AESGCM) aead(scope Scope) (cipher.AEAD, error) {
	if a == nil || a.keys == nil {
		return nil, ErrNotConfigured
	}

	key, err := a.keys.Key(scope)
	if err != nil {
		return nil, fmt.Errorf("vault: key provider error: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("vault: key length %d (want %d): %w", len(key), keySize, ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: aes init failed: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm init failed: %w", err)
	}

	return gcm, nil
}

// additionalData hashes a labelled canonical form of scope so the AAD has a
// fixed length and no separator ambiguity.
func additionalData(s Scope) []byte {
	sum := sha256.Sum256([]byte("subject=" + s.Subject + "\npurpose=" + string(s.Purpose) + "\n"))
	return sum[:]
}

// StaticKeyProvider returns the same key for every scope.
type StaticKeyProvider struct {
	KeyBytes []byte
}

// NewStaticKeyProvider decodes a base64 (standard encoding) 32 byte key.
func NewStaticKeyProvider(encoded string) (StaticKeyProvider, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return StaticKeyProvider{}, fmt.Errorf("vault: decode key: %w", err)
	}
	if len(key) != keySize {
		return StaticKeyProvider{}, ErrInvalidKeyLength
	}

	return StaticKeyProvider{KeyBytes: key}, nil
}

// Key returns a copy of the static key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingKey
	}

	k := make([]byte, len(p.KeyBytes))
	copy(k, p.KeyBytes)

	return k, nil
}
