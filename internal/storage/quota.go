package storage

import (
	"context"
	"fmt"
	"sync"
)

// Quota limits the bytes (keys plus values) held through it, in total and
// per key.
type Quota struct {
	next    Backend
	limit   int
	perItem int

	mu    sync.Mutex
	sizes map[string]int
}

// WithQuota wraps b with a total byte quota. A non-positive limit returns b
// as is.
func WithQuota(b Backend, limit int) Backend {
	return WithQuotas(b, limit, 0)
}

// WithQuotas wraps b with a total and a per-key byte quota. Non-positive
// limits are not enforced; if neither is, b is returned as is.
func WithQuotas(b Backend, total, perItem int) Backend {
	if total <= 0 && perItem <= 0 {
		return b
	}
	return &Quota{next: b, limit: total, perItem: perItem, sizes: make(map[string]int)}
}

func (q *Quota) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := q.next.Get(ctx, key)
	if err == nil {
		q.mu.Lock()
		q.sizes[key] = len(key) + len(v)
		q.mu.Unlock()
	}
	return v, err
}

func (q *Quota) Set(ctx context.Context, key string, value []byte) error {
	size := len(key) + len(value)
	if q.perItem > 0 && size > q.perItem {
		return fmt.Errorf("%w: QUOTA_BYTES_PER_ITEM: %s is %d bytes > %d", ErrQuotaExceeded, key, size, q.perItem)
	}

	q.mu.Lock()
	total := size
	for k, n := range q.sizes {
		if k != key {
			total += n
		}
	}
	q.mu.Unlock()

	if q.limit > 0 && total > q.limit {
		return fmt.Errorf("%w: %d bytes > %d", ErrQuotaExceeded, total, q.limit)
	}
	if err := q.next.Set(ctx, key, value); err != nil {
		return err
	}

	q.mu.Lock()
	q.sizes[key] = size
	q.mu.Unlock()
	return nil
}

func (q *Quota) Close() error { return q.next.Close() }
