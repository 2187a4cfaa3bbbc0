// In-memory content store. Backs tests and the no-embedded-storage
// fallback path without touching SQLite.
package store

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory implementation of ContentStorer.
type MemStore struct {
	mu       sync.RWMutex
	books    []*Book
	verses   []*Verse
	promises []*Promise
	nextID   int64
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

func (s *MemStore) ListBooks(_ context.Context) ([]*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Book, 0, len(s.books))
	for _, b := range s.books {
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BookNumber < result[j].BookNumber
	})
	return result, nil
}

func (s *MemStore) ChapterCount(_ context.Context, bookName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.books {
		if b.Name == bookName {
			return b.Chapters, nil
		}
	}
	return 0, nil
}

func (s *MemStore) VersesForChapter(_ context.Context, bookName string, chapter int) ([]*Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Verse
	for _, v := range s.verses {
		if v.BookName == bookName && v.Chapter == chapter {
			cp := *v
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Verse < result[j].Verse
	})
	return result, nil
}

func (s *MemStore) GetVerse(_ context.Context, bookName string, chapter, verse int) (*Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.verses {
		if v.BookName == bookName && v.Chapter == chapter && v.Verse == verse {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) SearchVerses(_ context.Context, query string) ([]*Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Verse
	for _, v := range s.verses {
		if strings.Contains(v.Text, query) || strings.Contains(v.TextTzotzil, query) {
			cp := *v
			result = append(result, &cp)
			if len(result) == SearchLimit {
				break
			}
		}
	}
	return result, nil
}

func (s *MemStore) RandomPromise(_ context.Context) (*Promise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.promises) == 0 {
		return nil, nil
	}
	cp := *s.promises[rand.Intn(len(s.promises))]
	return &cp, nil
}

func (s *MemStore) AllPromises(_ context.Context) ([]*Promise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Promise, 0, len(s.promises))
	for _, p := range s.promises {
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemStore) CountBooks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books), nil
}

func (s *MemStore) CountVerses(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.verses), nil
}

func (s *MemStore) AddBook(book *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if book.ID == 0 {
		book.ID = s.nextID
		s.nextID++
	}
	cp := *book
	s.books = append(s.books, &cp)
	return nil
}

func (s *MemStore) AddVerse(verse *Verse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if verse.ID == 0 {
		verse.ID = s.nextID
		s.nextID++
	}
	cp := *verse
	s.verses = append(s.verses, &cp)
	return nil
}

func (s *MemStore) AddPromise(promise *Promise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if promise.ID == 0 {
		promise.ID = s.nextID
		s.nextID++
	}
	cp := *promise
	s.promises = append(s.promises, &cp)
	return nil
}

// Compile-time interface check
var _ ContentStorer = (*MemStore)(nil)
