package mirror

import (
	"context"
	"sort"
	"sync"
)

// MemDB is an in-memory StructuredDB. Backs tests and local tooling; the
// browser uses the IndexedDB implementation.
type MemDB struct {
	mu      sync.RWMutex
	verses  map[string]StoredVerse // by ID
	books   map[string]StoredBook  // by Name
	history []HistoryEntry
	nextID  int64
}

// NewMemDB creates an empty in-memory structured DB.
func NewMemDB() *MemDB {
	return &MemDB{
		verses: make(map[string]StoredVerse),
		books:  make(map[string]StoredBook),
		nextID: 1,
	}
}

func (d *MemDB) SaveVerses(_ context.Context, verses []StoredVerse) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range verses {
		d.verses[v.ID] = v
	}
	return nil
}

func (d *MemDB) VersesByChapter(_ context.Context, book string, chapter int) ([]StoredVerse, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []StoredVerse
	for _, v := range d.verses {
		if v.Book == book && v.Chapter == chapter {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Verse < result[j].Verse })
	return result, nil
}

func (d *MemDB) SaveBooks(_ context.Context, books []StoredBook) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range books {
		d.books[b.Name] = b
	}
	return nil
}

func (d *MemDB) Books(_ context.Context) ([]StoredBook, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]StoredBook, 0, len(d.books))
	for _, b := range d.books {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (d *MemDB) AppendHistory(_ context.Context, entry HistoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry.ID = d.nextID
	d.nextID++
	d.history = append(d.history, entry)
	return nil
}

// History returns all stored exchanges in insertion order. Test hook.
func (d *MemDB) History() []HistoryEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HistoryEntry(nil), d.history...)
}

func (d *MemDB) Close() error {
	return nil
}

// Compile-time interface check
var _ StructuredDB = (*MemDB)(nil)

// MemCacheStorage is an in-memory CacheStorage keyed by cache name and
// request URL.
type MemCacheStorage struct {
	mu     sync.RWMutex
	caches map[string]map[string]*Response
}

// NewMemCacheStorage creates an empty in-memory cache storage.
func NewMemCacheStorage() *MemCacheStorage {
	return &MemCacheStorage{caches: make(map[string]map[string]*Response)}
}

func (c *MemCacheStorage) Match(_ context.Context, req *Request) (*Response, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, entries := range c.caches {
		if resp, ok := entries[req.URL]; ok {
			cp := *resp
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (c *MemCacheStorage) Put(_ context.Context, cacheName string, req *Request, resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, ok := c.caches[cacheName]
	if !ok {
		entries = make(map[string]*Response)
		c.caches[cacheName] = entries
	}
	cp := *resp
	entries[req.URL] = &cp
	return nil
}

func (c *MemCacheStorage) Names(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.caches))
	for name := range c.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *MemCacheStorage) Delete(_ context.Context, cacheName string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.caches[cacheName]
	delete(c.caches, cacheName)
	return ok, nil
}

// Compile-time interface check
var _ CacheStorage = (*MemCacheStorage)(nil)
