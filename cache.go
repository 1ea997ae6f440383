package dbbridge

import (
	"context"
	"time"
)

// Store is the external key-value cache collaborator. It is treated as out of scope: a concrete implementation
// (Redis, Memcached, an in-process map) is supplied by the caller; the
// cache coordinator in package cache only programs against this
// interface.
type Store interface {
	// Get retrieves a value from the store. Returns nil, nil if the key
	// doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL. ttl <= 0 means no
	// expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Reports whether a key was actually
	// removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns every stored key matching a glob-style pattern (`*`
	// matches any run of characters).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Clear removes every key from the store.
	Clear(ctx context.Context) error

	// TTL reports the remaining time to live for a key, or a negative
	// duration if the key does not exist or has no expiration.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire updates the TTL of an existing key. Reports whether the key
	// existed.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// PatternDeleter is implemented by stores that can delete matching keys
// in one round trip. The cache
// coordinator falls back to Keys+Delete when a Store doesn't implement
// it.
type PatternDeleter interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}
