package storage

import (
	"context"
	"fmt"

	"go.klb.dev/clipstash/internal/crypto"
)

// Sealed encrypts every value with NaCl secretbox before handing it on.
type Sealed struct {
	next Backend
	key  *[crypto.KeySize]byte
}

// WithSecret wraps b so values are sealed with a key derived from secret.
func WithSecret(b Backend, secret string) (*Sealed, error) {
	key, err := crypto.DeriveKey(secret)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &Sealed{next: b, key: key}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	ct, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := crypto.Open(ct, s.key)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	ct, err := crypto.Seal(value, s.key)
	if err != nil {
		return fmt.Errorf("storage: seal %s: %w", key, err)
	}
	return s.next.Set(ctx, key, ct)
}

func (s *Sealed) Close() error { return s.next.Close() }
