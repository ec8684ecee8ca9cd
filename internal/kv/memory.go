package kv

import (
	"context"
	"strconv"
	"sync"
	"time"

	"argus/pkg/errors"
)

// MemoryStore implements Store in process memory. It honors TTLs
// lazily: expired entries are dropped when touched. Used by the demo
// command and unit tests; not meant for production retention.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	lists  map[string]*memoryList
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time
}

type memoryList struct {
	items     []string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryValue),
		lists:  make(map[string]*memoryList),
	}
}

// Set stores value under key with the given TTL
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := memoryValue{data: append([]byte(nil), value...)}
	if ttl > 0 {
		v.expiresAt = time.Now().Add(ttl)
	}
	s.values[key] = v
	return nil
}

// Get returns the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok || expired(v.expiresAt) {
		delete(s.values, key)
		return nil, errors.Wrapf(errors.ErrNotFound, "key %s", key)
	}
	return append([]byte(nil), v.data...), nil
}

// ListAppend appends values to the tail of the list at key
func (s *MemoryStore) ListAppend(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[key]
	if !ok || expired(l.expiresAt) {
		l = &memoryList{}
		s.lists[key] = l
	}
	l.items = append(l.items, values...)
	return nil
}

// ListRange returns list elements in [start, stop]
func (s *MemoryStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[key]
	if !ok || expired(l.expiresAt) {
		return nil, nil
	}

	n := int64(len(l.items))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if start >= n || stop < start {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}

	out := make([]string, stop-start+1)
	copy(out, l.items[start:stop+1])
	return out, nil
}

// ListLen returns the length of the list at key
func (s *MemoryStore) ListLen(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[key]
	if !ok || expired(l.expiresAt) {
		return 0, nil
	}
	return int64(len(l.items)), nil
}

// IncrByFloat adds delta to the numeric value at key
func (s *MemoryStore) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0.0
	v, ok := s.values[key]
	if ok && !expired(v.expiresAt) {
		parsed, err := strconv.ParseFloat(string(v.data), 64)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidInput, "key %s holds a non-numeric value", key)
		}
		current = parsed
	} else {
		v = memoryValue{}
	}

	current += delta
	v.data = []byte(strconv.FormatFloat(current, 'f', -1, 64))
	s.values[key] = v
	return current, nil
}

// Expire sets or refreshes the TTL on key
func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Time{}
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	if v, ok := s.values[key]; ok && !expired(v.expiresAt) {
		v.expiresAt = deadline
		s.values[key] = v
	}
	if l, ok := s.lists[key]; ok && !expired(l.expiresAt) {
		l.expiresAt = deadline
	}
	return nil
}

// Delete removes the given keys
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.values, key)
		delete(s.lists, key)
	}
	return nil
}

// Ping always succeeds for the in-process store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func expired(at time.Time) bool {
	return !at.IsZero() && time.Now().After(at)
}
