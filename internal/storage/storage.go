// Package storage provides the durable key/value area the history store
// mirrors itself into. It plays the part of a browser's synced storage: one
// JSON value per key, a byte quota, and optional encryption at rest.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned by Get when the key has never been set.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the value would not fit.
	ErrQuotaExceeded = errors.New("storage: QUOTA_BYTES quota exceeded")
)

// Backend is a minimal key/value store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Close releases any resources held by the backend.
	Close() error
}

// Config selects and decorates a backend.
type Config struct {
	// Kind is "sqlite" (default) or "memory".
	Kind string
	// Path is the SQLite database file. Ignored for memory.
	Path string
	// Secret enables at-rest sealing when non-empty.
	Secret string
	// QuotaBytes caps key+value size summed over all keys. Zero disables it.
	QuotaBytes int
	// QuotaBytesPerItem caps key+value size of any single key. Zero
	// disables it.
	QuotaBytesPerItem int
}

// Byte quotas of a browser sync area.
const (
	DefaultQuotaBytes        = 102400
	DefaultQuotaBytesPerItem = 8192
)

// Open builds the backend described by cfg. Sealing wraps the quota so the
// quota sees the bytes actually written.
func Open(cfg Config) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Kind {
	case "", "sqlite":
		b, err = OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
	case "memory":
		b = NewMemory()
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Kind)
	}

	b = WithQuotas(b, cfg.QuotaBytes, cfg.QuotaBytesPerItem)
	if cfg.Secret != "" {
		sealed, err := WithSecret(b, cfg.Secret)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b = sealed
	}
	return b, nil
}

// DefaultPath returns $XDG_DATA_HOME/clipstash/history.db, falling back to
// ~/.local/share/clipstash/history.db.
func DefaultPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "clipstash", "history.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "clipstash", "history.db")
	}
	return filepath.Join(os.TempDir(), "clipstash", "history.db")
}
