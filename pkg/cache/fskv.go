package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/hack-pad/hackpadfs"
)

// FSKV is a KV backed by a hackpadfs filesystem: one JSON file per entry.
// Against an OS filesystem it persists across app restarts; under js/wasm
// the same code runs against an IndexedDB filesystem. Keys are encoded
// into file names, so arbitrary key strings are safe.
type FSKV struct {
	fsys hackpadfs.FS
	dir  string
	log  *slog.Logger
	now  func() time.Time

	// Serializes writes to the directory; reads go straight to the fs.
	mu sync.Mutex
}

// NewFSKV creates a filesystem-backed cache rooted at dir.
func NewFSKV(fsys hackpadfs.FS, dir string, logger *slog.Logger) (*FSKV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := hackpadfs.MkdirAll(fsys, dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FSKV{fsys: fsys, dir: dir, log: logger, now: time.Now}, nil
}

func (f *FSKV) file(key string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(Prefix + key))
	return path.Join(f.dir, name+".json")
}

func (f *FSKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := fs.ReadFile(f.fsys, f.file(key))
	if err != nil {
		return "", false, nil // missing file is a plain miss
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		f.log.Warn("dropping malformed cache entry", "key", key)
		f.remove(key)
		return "", false, nil
	}
	if entry.Expired(f.now()) {
		f.remove(key)
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (f *FSKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	expiry := int64(0)
	if ttl > 0 {
		expiry = f.now().Add(ttl).UnixMilli()
	}
	data, err := json.Marshal(Entry{Value: value, Expiry: expiry})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return hackpadfs.WriteFullFile(f.fsys, f.file(key), data, 0o644)
}

func (f *FSKV) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.remove(key)
}

func (f *FSKV) remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := hackpadfs.Remove(f.fsys, f.file(key))
	if err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

func (f *FSKV) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(f.fsys, f.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".json" {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(name[:len(name)-len(".json")])
		if err != nil || len(raw) <= len(Prefix) {
			continue
		}
		keys = append(keys, string(raw[len(Prefix):]))
	}
	return keys, nil
}

func (f *FSKV) Clear(ctx context.Context) error {
	keys, err := f.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := f.remove(key); err != nil {
			return err
		}
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, hackpadfs.ErrNotExist) || errors.Is(err, fs.ErrNotExist)
}

// Compile-time interface check
var _ KV = (*FSKV)(nil)
