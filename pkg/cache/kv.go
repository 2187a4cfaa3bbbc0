// Package cache provides the platform key-value cache: small serialized
// payloads keyed by operation+arguments, with lazy TTL expiry. Entries are
// owned by the cache; callers keep keys, never references.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Prefix is prepended to every stored key, mirroring the cache namespace
// of the mobile app.
const Prefix = "cache_"

// DefaultTTL is used when Set is called with a zero TTL.
const DefaultTTL = time.Hour

// Entry is the stored form of a cached value.
type Entry struct {
	Value  string `json:"value"`
	Expiry int64  `json:"expiry"` // unix ms; 0 = no expiry
}

// Expired reports whether the entry is past its expiry at time now.
func (e Entry) Expired(now time.Time) bool {
	return e.Expiry != 0 && e.Expiry < now.UnixMilli()
}

// KV is a TTL'd key-value cache. Implementations tolerate concurrent
// readers and writers; two writers racing on the same key write
// semantically equivalent data, so last-write-wins is safe.
type KV interface {
	// Get returns the cached value. A missing or expired key is
	// (value "", ok false); expired entries are deleted lazily.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	// Keys lists all live keys (without the storage prefix).
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// GetJSON reads and decodes a cached JSON value.
func GetJSON[T any](ctx context.Context, kv KV, key string) (T, bool) {
	var v T
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return v, false
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON encodes and stores a JSON value.
func SetJSON(ctx context.Context, kv KV, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, string(raw), ttl)
}

// RemoveByPrefix deletes every key carrying one of the given prefixes.
func RemoveByPrefix(ctx context.Context, kv KV, prefixes ...string) error {
	keys, err := kv.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				if err := kv.Remove(ctx, key); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}
