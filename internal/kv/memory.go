package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store for unit tests and local development.
// A single mutex guards all state, which makes every operation atomic
// with respect to concurrent callers, matching the Redis semantics the
// pipeline depends on.
type Memory struct {
	mu     sync.Mutex
	values map[string]memEntry
	lists  map[string][]string
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: map[string]memEntry{},
		lists:  map[string][]string{},
	}
}

// live returns the entry at key, discarding it first if its TTL elapsed.
// Caller must hold mu.
func (m *Memory) live(key string) (memEntry, bool) {
	e, ok := m.values[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.values, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	e, ok := m.live(key)
	if ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	m.values[key] = memEntry{value: strconv.FormatInt(n, 10), expiresAt: e.expiresAt}
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.live(key); ok {
		e.expiresAt = time.Now().Add(ttl)
		m.values[key] = e
	}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(key); ok {
		return false, nil
	}
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.values[key] = e
	return true, nil
}

func (m *Memory) LPush(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *Memory) RPopCount(_ context.Context, key string, count int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.lists[key]
	if len(list) == 0 || count <= 0 {
		return nil, nil
	}
	if count > len(list) {
		count = len(list)
	}

	// Pop from the tail, oldest first.
	popped := make([]string, 0, count)
	for i := 0; i < count; i++ {
		popped = append(popped, list[len(list)-1-i])
	}
	m.lists[key] = list[:len(list)-count]
	return popped, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
