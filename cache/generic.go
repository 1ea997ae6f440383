package cache

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"
)

// Get decodes the value stored under key into T, reporting whether it
// was present. The payload is expected to have been written by Set or
// GetOrSet (msgpack-encoded).
func Get[T any](ctx context.Context, c *Coordinator, key string) (result T, hit bool, err error) {
	raw, hit, err := c.Get(ctx, key)
	if err != nil || !hit {
		return result, hit, err
	}
	if err := msgpack.Unmarshal(raw, &result); err != nil {
		// A corrupt or foreign payload is treated as a miss rather than
		// a caller-visible error.
		return result, false, nil
	}
	return result, true, nil
}

// Set msgpack-encodes value and stores it under key per opts.
func Set[T any](ctx context.Context, c *Coordinator, key string, value T, opts SetOptions) (cached bool, err error) {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return false, err
	}
	return c.Set(ctx, key, raw, opts)
}

// GetOrSet returns the cached value for key if present; otherwise it
// calls build exactly once per concurrent burst of callers sharing c and
// key (via singleflight), caches the result per opts, and returns it.
// This is the layer callers reach for when they want at-most-once-build
// semantics, which the coordinator alone does not guarantee.
func GetOrSet[T any](ctx context.Context, c *Coordinator, key string, opts SetOptions, build func(ctx context.Context) (T, error)) (T, error) {
	if v, hit, err := Get[T](ctx, c, key); err == nil && hit {
		return v, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := build(ctx)
		if err != nil {
			return v, err
		}
		if _, err := Set(ctx, c, key, v, opts); err != nil {
			c.cfg.Logger.Warn("cache: set after build failed", "key", key, "error", err)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
