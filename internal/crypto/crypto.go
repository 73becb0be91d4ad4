// Package crypto seals persisted clipboard history with NaCl secretbox.
//
// The 32-byte key is derived from the configured storage secret with
// HKDF-SHA256. Each sealed value carries its own random nonce:
//
//	[ 24-byte nonce ][ secretbox(plaintext) ]
//
// An empty secret means values are stored as plain JSON and this package is
// not used.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the secretbox key length.
	KeySize   = 32
	nonceSize = 24
)

var (
	hkdfSalt = []byte("clipstash-storage")
	hkdfInfo = []byte("clipstash-v1")

	// ErrOpen is returned when a sealed value cannot be authenticated,
	// usually because the secret changed since it was written.
	ErrOpen = errors.New("crypto: decryption failed (wrong secret?)")
)

// DeriveKey derives a secretbox key from secret. The same secret always
// yields the same key.
func DeriveKey(secret string) (*[KeySize]byte, error) {
	if secret == "" {
		return nil, errors.New("crypto: empty secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), hkdfSalt, hkdfInfo)
	var key [KeySize]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("crypto: key derivation: %w", err)
	}
	return &key, nil
}

// Seal encrypts plaintext under key and returns nonce||ciphertext.
func Seal(plaintext []byte, key *[KeySize]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open reverses Seal.
func Open(sealed []byte, key *[KeySize]byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("crypto: sealed value too short (%d bytes)", len(sealed))
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrOpen
	}
	return plain, nil
}
