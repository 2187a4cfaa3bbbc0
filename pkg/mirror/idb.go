//go:build js && wasm

package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/hack-pad/go-indexeddb/idb"
	"github.com/hack-pad/safejs"

	"github.com/tzotzilbible/gobible/pkg/queue"
)

// Structured database layout. Each collection is created idempotently in
// the version-upgrade hook.
const (
	DBName    = "TzotzilBibleDB"
	DBVersion = 1

	storeVerses  = "verses"
	storeBooks   = "books"
	storeHistory = "nevinHistory"
	storePending = "pendingSync"
	idxBook      = "book"
	idxChapter   = "chapter"
	idxTimestamp = "timestamp"
	idxType      = "type"
)

// IDB implements StructuredDB and queue.Store over the browser's
// IndexedDB via go-indexeddb.
type IDB struct {
	db *idb.Database
}

// OpenIDB opens (and if needed migrates) the structured database.
func OpenIDB(ctx context.Context) (*IDB, error) {
	req, err := idb.Global().Open(ctx, DBName, DBVersion, upgrade)
	if err != nil {
		return nil, fmt.Errorf("open indexeddb: %w", err)
	}
	db, err := req.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("await indexeddb open: %w", err)
	}
	return &IDB{db: db}, nil
}

// upgrade runs once per version increment. Existence checks make it
// idempotent across partially applied upgrades.
func upgrade(db *idb.Database, oldVersion, newVersion uint) error {
	existing, err := db.ObjectStoreNames()
	if err != nil {
		return err
	}
	has := func(name string) bool {
		for _, n := range existing {
			if n == name {
				return true
			}
		}
		return false
	}

	if !has(storeVerses) {
		store, err := db.CreateObjectStore(storeVerses, idb.ObjectStoreOptions{
			KeyPath: mustJS("id"),
		})
		if err != nil {
			return err
		}
		if _, err := store.CreateIndex(idxBook, mustJS("book"), idb.IndexOptions{}); err != nil {
			return err
		}
		if _, err := store.CreateIndex(idxChapter, mustJS([]any{"book", "chapter"}), idb.IndexOptions{}); err != nil {
			return err
		}
	}

	if !has(storeBooks) {
		if _, err := db.CreateObjectStore(storeBooks, idb.ObjectStoreOptions{
			KeyPath: mustJS("name"),
		}); err != nil {
			return err
		}
	}

	if !has(storeHistory) {
		store, err := db.CreateObjectStore(storeHistory, idb.ObjectStoreOptions{
			KeyPath:       mustJS("id"),
			AutoIncrement: true,
		})
		if err != nil {
			return err
		}
		if _, err := store.CreateIndex(idxTimestamp, mustJS("timestamp"), idb.IndexOptions{}); err != nil {
			return err
		}
	}

	if !has(storePending) {
		store, err := db.CreateObjectStore(storePending, idb.ObjectStoreOptions{
			KeyPath:       mustJS("id"),
			AutoIncrement: true,
		})
		if err != nil {
			return err
		}
		if _, err := store.CreateIndex(idxType, mustJS("type"), idb.IndexOptions{}); err != nil {
			return err
		}
	}

	return nil
}

func (d *IDB) Close() error {
	return d.db.Close()
}

// =============================================================================
// StructuredDB
// =============================================================================

func (d *IDB) SaveVerses(ctx context.Context, verses []StoredVerse) error {
	txn, err := d.db.Transaction(idb.TransactionReadWrite, storeVerses)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(storeVerses)
	if err != nil {
		return err
	}
	for _, v := range verses {
		val, err := toJS(v)
		if err != nil {
			return err
		}
		if _, err := store.Put(val); err != nil {
			return err
		}
	}
	return txn.Await(ctx)
}

func (d *IDB) VersesByChapter(ctx context.Context, book string, chapter int) ([]StoredVerse, error) {
	txn, err := d.db.Transaction(idb.TransactionReadOnly, storeVerses)
	if err != nil {
		return nil, err
	}
	store, err := txn.ObjectStore(storeVerses)
	if err != nil {
		return nil, err
	}
	index, err := store.Index(idxChapter)
	if err != nil {
		return nil, err
	}
	key, err := toJS([]any{book, chapter})
	if err != nil {
		return nil, err
	}
	keyRange, err := idb.NewKeyRangeOnly(key)
	if err != nil {
		return nil, err
	}
	cursor, err := index.OpenCursorRange(keyRange, idb.CursorNext)
	if err != nil {
		return nil, err
	}

	var verses []StoredVerse
	err = cursor.Iter(ctx, func(c *idb.CursorWithValue) error {
		val, err := c.Value()
		if err != nil {
			return err
		}
		var v StoredVerse
		if err := fromJS(val, &v); err != nil {
			return err
		}
		verses = append(verses, v)
		return nil
	})
	return verses, err
}

func (d *IDB) SaveBooks(ctx context.Context, books []StoredBook) error {
	txn, err := d.db.Transaction(idb.TransactionReadWrite, storeBooks)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(storeBooks)
	if err != nil {
		return err
	}
	for _, b := range books {
		val, err := toJS(b)
		if err != nil {
			return err
		}
		if _, err := store.Put(val); err != nil {
			return err
		}
	}
	return txn.Await(ctx)
}

func (d *IDB) Books(ctx context.Context) ([]StoredBook, error) {
	var books []StoredBook
	err := d.iterStore(ctx, storeBooks, func(val safejs.Value) error {
		var b StoredBook
		if err := fromJS(val, &b); err != nil {
			return err
		}
		books = append(books, b)
		return nil
	})
	return books, err
}

func (d *IDB) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	txn, err := d.db.Transaction(idb.TransactionReadWrite, storeHistory)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(storeHistory)
	if err != nil {
		return err
	}
	// Strip the zero ID so IndexedDB assigns the auto-increment key.
	val, err := toJS(map[string]any{
		"timestamp": entry.Timestamp,
		"question":  entry.Question,
		"response":  entry.Response,
	})
	if err != nil {
		return err
	}
	if _, err := store.Put(val); err != nil {
		return err
	}
	return txn.Await(ctx)
}

// Compile-time interface check
var _ StructuredDB = (*IDB)(nil)

// =============================================================================
// queue.Store (pendingSync collection)
// =============================================================================

func (d *IDB) Add(ctx context.Context, item *queue.Item) error {
	txn, err := d.db.Transaction(idb.TransactionReadWrite, storePending)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(storePending)
	if err != nil {
		return err
	}
	val, err := toJS(map[string]any{
		"type":        item.Type,
		"data":        json.RawMessage(item.Payload),
		"timestamp":   item.Timestamp,
		"attempts":    item.Attempts,
		"nextAttempt": item.NextAttempt,
	})
	if err != nil {
		return err
	}
	req, err := store.Put(val)
	if err != nil {
		return err
	}
	key, err := req.Await(ctx)
	if err != nil {
		return err
	}
	var id int64
	if err := fromJS(key, &id); err == nil {
		item.ID = id
	}
	return txn.Await(ctx)
}

func (d *IDB) All(ctx context.Context) ([]*queue.Item, error) {
	var items []*queue.Item
	err := d.iterStore(ctx, storePending, func(val safejs.Value) error {
		var item queue.Item
		if err := fromJS(val, &item); err != nil {
			return err
		}
		items = append(items, &item)
		return nil
	})
	return items, err
}

func (d *IDB) Update(ctx context.Context, item *queue.Item) error {
	txn, err := d.db.Transaction(idb.TransactionReadWrite, storePending)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(storePending)
	if err != nil {
		return err
	}
	val, err := toJS(item)
	if err != nil {
		return err
	}
	if _, err := store.Put(val); err != nil {
		return err
	}
	return txn.Await(ctx)
}

func (d *IDB) Delete(ctx context.Context, id int64) error {
	txn, err := d.db.Transaction(idb.TransactionReadWrite, storePending)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(storePending)
	if err != nil {
		return err
	}
	key, err := toJS(id)
	if err != nil {
		return err
	}
	req, err := store.Delete(key)
	if err != nil {
		return err
	}
	if err := req.Await(ctx); err != nil {
		return err
	}
	return txn.Await(ctx)
}

// Compile-time interface check
var _ queue.Store = (*IDB)(nil)

// =============================================================================
// Helpers
// =============================================================================

func (d *IDB) iterStore(ctx context.Context, name string, fn func(safejs.Value) error) error {
	txn, err := d.db.Transaction(idb.TransactionReadOnly, name)
	if err != nil {
		return err
	}
	store, err := txn.ObjectStore(name)
	if err != nil {
		return err
	}
	cursor, err := store.OpenCursor(idb.CursorNext)
	if err != nil {
		return err
	}
	return cursor.Iter(ctx, func(c *idb.CursorWithValue) error {
		val, err := c.Value()
		if err != nil {
			return err
		}
		return fn(val)
	})
}

// toJS converts a Go value into a JS object via JSON.
func toJS(v any) (safejs.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return safejs.Value{}, err
	}
	parsed := js.Global().Get("JSON").Call("parse", string(data))
	return safejs.Safe(parsed), nil
}

// fromJS converts a JS value back into a Go value via JSON.
func fromJS(v safejs.Value, out any) error {
	raw := js.Global().Get("JSON").Call("stringify", safejs.Unsafe(v))
	if raw.IsUndefined() || raw.IsNull() {
		return fmt.Errorf("value does not stringify")
	}
	return json.Unmarshal([]byte(raw.String()), out)
}

func mustJS(v any) safejs.Value {
	val, err := safejs.ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}
