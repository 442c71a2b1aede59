package cache

import (
	"context"
	"time"
)

// Noop never stores anything; every Get misses. Used when CACHE_BACKEND=none.
type Noop[V any] struct{}

func (Noop[V]) Get(context.Context, string) (V, error) {
	var zero V
	return zero, ErrNotFound
}

func (Noop[V]) Set(context.Context, string, V, time.Duration) error { return nil }

func (Noop[V]) Delete(context.Context, ...string) error { return nil }

var _ Cache[any] = Noop[any]{}
