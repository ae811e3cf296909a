package profile

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// saltSize is the width of the random, profile-local salt persisted at
// <profile>/salt. pbkdf2Iterations meets the spec's "≥100,000 iterations"
// floor (§4.6).
const (
	saltSize         = 16
	pbkdf2Iterations = 100_000
)

// NewSalt generates a fresh random salt for a profile.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, chacha20poly1305.KeySize, sha256.New)
}

// SealToken encrypts token under a key derived from password and salt,
// returning a base64 string suitable for Config.SealedToken. The
// plaintext token and the derived key are never retained by the caller
// longer than this call (§4.6 "Credential hygiene").
func SealToken(password string, salt []byte, token string) (string, error) {
	aead, err := chacha20poly1305.New(deriveKey(password, salt))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// UnsealToken decrypts a SealToken output. On a wrong password or a
// corrupted/tampered value it returns a generic error — never the
// plaintext, and never a distinction between "wrong password" and
// "corrupted data" that would help an attacker narrow down either.
func UnsealToken(password string, salt []byte, sealedB64 string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(sealedB64)
	if err != nil {
		return "", fmt.Errorf("unseal token: malformed ciphertext")
	}
	aead, err := chacha20poly1305.New(deriveKey(password, salt))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(combined) < aead.NonceSize() {
		return "", fmt.Errorf("unseal token: malformed ciphertext")
	}
	nonce, ciphertext := combined[:aead.NonceSize()], combined[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("unseal token: wrong password or corrupted data")
	}
	return string(plaintext), nil
}
