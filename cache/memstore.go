package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemStore is a process-local dbbridge.Store backed by a mutex-protected
// map. It exists for tests and local use; production
// callers are expected to supply a real backend (Redis, Memcached, …)
// behind the same Store interface.
type MemStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	expires map[string]time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		values:  make(map[string][]byte),
		expires: make(map[string]time.Time),
	}
}

func (s *MemStore) expired(key string, now time.Time) bool {
	exp, ok := s.expires[key]
	return ok && now.After(exp)
}

// Get implements dbbridge.Store.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		delete(s.values, key)
		delete(s.expires, key)
		return nil, nil
	}
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Set implements dbbridge.Store.
func (s *MemStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.values[key] = cp
	if ttl > 0 {
		s.expires[key] = time.Now().Add(ttl)
	} else {
		delete(s.expires, key)
	}
	return nil
}

// Delete implements dbbridge.Store.
func (s *MemStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	delete(s.values, key)
	delete(s.expires, key)
	return ok, nil
}

// Exists implements dbbridge.Store.
func (s *MemStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key, time.Now()) {
		return false, nil
	}
	_, ok := s.values[key]
	return ok, nil
}

// Keys implements dbbridge.Store, matching pattern with path.Match
// glob semantics").
func (s *MemStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var matched []string
	for k := range s.values {
		if s.expired(k, now) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

// Clear implements dbbridge.Store.
func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string][]byte)
	s.expires = make(map[string]time.Time)
	return nil
}

// TTL implements dbbridge.Store.
func (s *MemStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[key]
	if !ok {
		if _, present := s.values[key]; present {
			return -1, nil
		}
		return -1, nil
	}
	return time.Until(exp), nil
}

// Expire implements dbbridge.Store.
func (s *MemStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return false, nil
	}
	if ttl > 0 {
		s.expires[key] = time.Now().Add(ttl)
	} else {
		delete(s.expires, key)
	}
	return true, nil
}

// DeletePattern implements dbbridge.PatternDeleter.
func (s *MemStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
		delete(s.expires, k)
	}
	return len(keys), nil
}
