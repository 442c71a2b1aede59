// Package cache provides the read-through cache used for property lookups.
// Values are JSON encoded so any backend storing bytes can serve them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("cache: entry not found")
	// ErrUnmarshal is returned when a stored entry cannot be decoded.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")
)

// Cache is a typed key-value cache. A zero ttl on Set means the backend default.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Loader computes a value on a cache miss.
type Loader[V any] func(ctx context.Context) (V, error)

// ReadThrough wraps a Cache with miss deduplication: concurrent misses on the
// same key share one loader call.
type ReadThrough[V any] struct {
	cache Cache[V]
	group singleflight.Group
	ttl   time.Duration
}

// NewReadThrough returns a read-through wrapper around c. Panics on nil cache.
func NewReadThrough[V any](c Cache[V], ttl time.Duration) *ReadThrough[V] {
	if c == nil {
		panic("cache is required")
	}
	return &ReadThrough[V]{cache: c, ttl: ttl}
}

// GetOrLoad returns the cached value for key or calls load and stores its result.
// Cache backend failures degrade to calling load; the second return reports a hit.
func (r *ReadThrough[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, bool, error) {
	if v, err := r.cache.Get(ctx, key); err == nil {
		return v, true, nil
	}

	// The load is shared, so one caller cancelling must not fail the others.
	loadCtx := context.WithoutCancel(ctx)
	res, err, _ := r.group.Do(key, func() (any, error) {
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		// best effort; a failed write only costs a later miss
		_ = r.cache.Set(loadCtx, key, v, r.ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	return res.(V), false, nil
}

// Invalidate drops the given keys. Later misses start a fresh load instead of joining one already
// in flight; that older load may still write its value back until the ttl expires it.
func (r *ReadThrough[V]) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		r.group.Forget(key)
	}
	return r.cache.Delete(ctx, keys...)
}

func marshal[V any](v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal value: %w", err)
	}
	return data, nil
}

func unmarshal[V any](data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}
