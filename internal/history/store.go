// Package history owns the authoritative clipboard history: a newest-first,
// capacity-bounded, deduplicated list that is mirrored to storage after every
// mutation.
//
// A Store is created once per daemon and handed to the transport layer; there
// is no package-level state. Operations never fail toward protocol callers:
// persistence problems are returned inside an Outcome for inspection and are
// already logged by the time the caller sees them.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.klb.dev/clipstash/internal/storage"
)

const (
	// StorageKey is the key the list is persisted under.
	StorageKey = "clipboardItems"
	// DefaultCapacity bounds the list after every mutation.
	DefaultCapacity = 50
	// DefaultFallbackCapacity is used for the single retry after a quota error.
	DefaultFallbackCapacity = 30
)

// Notifier is told about every successful persistence write.
type Notifier interface {
	Changed(count int)
}

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Capacity         int
	FallbackCapacity int
	Notifier         Notifier
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.FallbackCapacity <= 0 || o.FallbackCapacity > o.Capacity {
		o.FallbackCapacity = min(DefaultFallbackCapacity, o.Capacity)
	}
	return o
}

// Outcome is the result of a mutation. Changed reports whether the in-memory
// list was modified; Err carries a persistence failure that has already been
// reported.
type Outcome struct {
	Changed bool
	Err     error
}

// Store is the clipboard history. All methods are safe for concurrent use;
// mutations are serialised from duplicate check through persistence.
type Store struct {
	backend storage.Backend
	opts    Options

	mu    sync.Mutex
	items []Entry

	popupOpen atomic.Bool
}

// Open creates a Store over backend and loads the persisted list. A failed
// load is reported and leaves the store empty; it does not fail Open.
func Open(ctx context.Context, backend storage.Backend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, errors.New("history: nil storage backend")
	}
	s := &Store{
		backend: backend,
		opts:    opts.withDefaults(),
		items:   []Entry{},
	}
	_ = s.Reload(ctx)
	return s, nil
}

// Close releases the storage backend.
func (s *Store) Close() error { return s.backend.Close() }

// Capacity returns the configured list bound.
func (s *Store) Capacity() int { return s.opts.Capacity }

// Get returns a copy of the current list, newest first. It is never nil.
func (s *Store) Get(_ context.Context) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add inserts e at the front unless an entry with the same kind and content
// is already present, in which case it is a no-op and the original timestamp
// is kept.
func (s *Store) Add(ctx context.Context, e Entry) Outcome {
	if !e.Kind.Valid() {
		return Outcome{Err: Report(Fail(KindInvalid, "add", errors.New("unknown entry type "+string(e.Kind))))}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if Contains(s.items, e.Kind, e.Content) {
		return Outcome{}
	}
	s.items = append([]Entry{e}, s.items...)
	return Outcome{Changed: true, Err: s.persistLocked(ctx)}
}

// Delete removes the first entry matching timestamp, kind and content
// exactly. A missing entry is a silent no-op.
func (s *Store) Delete(ctx context.Context, timestamp int64, kind Kind, content string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.items {
		if e.Matches(timestamp, kind, content) {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return Outcome{Changed: true, Err: s.persistLocked(ctx)}
		}
	}
	return Outcome{}
}

// Reload replaces the in-memory list with the persisted one. It runs at
// daemon start and on every re-initialisation request. On failure the current
// list is kept and the reported error is returned.
func (s *Store) Reload(ctx context.Context) error {
	raw, err := s.backend.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Debug("no persisted clipboard history")
		return nil
	}
	if err != nil {
		return Report(Fail(KindStorageRead, "load", err))
	}

	var items []Entry
	if err := json.Unmarshal(raw, &items); err != nil {
		return Report(Fail(KindDecode, "load", err))
	}
	if items == nil {
		items = []Entry{}
	}
	if len(items) > s.opts.Capacity {
		items = items[:s.opts.Capacity]
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	slog.Info("loaded clipboard history", "items", len(items))
	return nil
}

// SetPopupOpen records whether a popup is currently showing.
func (s *Store) SetPopupOpen(open bool) {
	if s.popupOpen.Swap(open) != open {
		slog.Debug("popup presence changed", "open", open)
	}
}

// PopupOpen reports the last recorded popup presence.
func (s *Store) PopupOpen() bool { return s.popupOpen.Load() }

// persistLocked truncates the list to capacity and writes it out. A quota
// failure gets one retry with the fallback capacity; if that succeeds the
// in-memory list is trimmed to match. If it fails too, memory and storage
// are left to diverge. Must be called with s.mu held.
func (s *Store) persistLocked(ctx context.Context) error {
	if len(s.items) > s.opts.Capacity {
		s.items = s.items[:s.opts.Capacity]
	}

	err := s.writeLocked(ctx, s.items)
	if err == nil {
		slog.Debug("saved clipboard history", "items", len(s.items))
		return nil
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		return Report(Fail(KindStorageWrite, "persist", err))
	}
	Report(Fail(KindQuota, "persist", err))

	reduced := s.items[:min(len(s.items), s.opts.FallbackCapacity)]
	if err := s.writeLocked(ctx, reduced); err != nil {
		return Report(Fail(KindQuota, "persist reduced", err))
	}
	s.items = reduced
	slog.Info("saved reduced clipboard history", "items", len(reduced))
	return nil
}

func (s *Store) writeLocked(ctx context.Context, items []Entry) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, StorageKey, raw); err != nil {
		return err
	}
	if s.opts.Notifier != nil {
		s.opts.Notifier.Changed(len(items))
	}
	return nil
}
