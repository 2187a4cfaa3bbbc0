package cache

import (
	"context"
	"sync"
	"time"
)

// MemKV is an in-memory KV implementation.
type MemKV struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemKV creates an empty in-memory cache.
func NewMemKV() *MemKV {
	return &MemKV{entries: make(map[string]Entry), now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (m *MemKV) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[Prefix+key]
	if !ok {
		return "", false, nil
	}
	if entry.Expired(m.now()) {
		delete(m.entries, Prefix+key)
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (m *MemKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = DefaultTTL
	}
	expiry := int64(0)
	if ttl > 0 {
		expiry = m.now().Add(ttl).UnixMilli()
	}
	m.entries[Prefix+key] = Entry{Value: value, Expiry: expiry}
	return nil
}

func (m *MemKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Prefix+key)
	return nil
}

func (m *MemKV) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k[len(Prefix):])
	}
	return keys, nil
}

func (m *MemKV) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
	return nil
}

// Compile-time interface check
var _ KV = (*MemKV)(nil)
