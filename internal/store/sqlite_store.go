// SQLite-backed content store using ncruces/go-sqlite3's database/sql
// driver, which works both natively and under js/wasm.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the SQLite-backed content store.
// Thread-safe for concurrent callers.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema matches the bundled bible.db layout. Applied with IF NOT EXISTS
// so opening a seeded database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    book_number INTEGER NOT NULL,
    testament TEXT,
    chapters_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS verses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL,
    book_name TEXT NOT NULL,
    chapter INTEGER NOT NULL,
    verse INTEGER NOT NULL,
    text_spanish TEXT,
    text_tzotzil TEXT
);

CREATE INDEX IF NOT EXISTS idx_verses_lookup ON verses(book_name, chapter, verse);
CREATE INDEX IF NOT EXISTS idx_verses_text ON verses(text_spanish);

CREATE TABLE IF NOT EXISTS promises (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    image_url TEXT
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreAtPath(":memory:")
}

// NewSQLiteStoreAtPath opens a store at the given path.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreAtPath(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// =============================================================================
// Reads
// =============================================================================

// ListBooks returns all books ordered by book number.
func (s *SQLiteStore) ListBooks(ctx context.Context) ([]*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, book_number, testament, chapters_count
		FROM books ORDER BY book_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		var testament sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &b.BookNumber, &testament, &b.Chapters); err != nil {
			return nil, err
		}
		b.Testament = testament.String
		books = append(books, &b)
	}
	return books, rows.Err()
}

// ChapterCount returns the number of chapters in a book, 0 if unknown.
func (s *SQLiteStore) ChapterCount(ctx context.Context, bookName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT chapters_count FROM books WHERE name = ?`, bookName,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// VersesForChapter returns the verses of a chapter in verse order.
func (s *SQLiteStore) VersesForChapter(ctx context.Context, bookName string, chapter int) ([]*Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, book_name, chapter, verse, text_spanish, text_tzotzil
		FROM verses
		WHERE book_name = ? AND chapter = ?
		ORDER BY verse
	`, bookName, chapter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVerses(rows)
}

// GetVerse returns a single verse, nil if not found.
func (s *SQLiteStore) GetVerse(ctx context.Context, bookName string, chapter, verse int) (*Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v Verse
	var spanish, tzotzil sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, book_id, book_name, chapter, verse, text_spanish, text_tzotzil
		FROM verses
		WHERE book_name = ? AND chapter = ? AND verse = ?
	`, bookName, chapter, verse).Scan(
		&v.ID, &v.BookID, &v.BookName, &v.Chapter, &v.Verse, &spanish, &tzotzil,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.Text = spanish.String
	v.TextTzotzil = tzotzil.String
	return &v, nil
}

// SearchVerses does a substring match over both language columns.
// At most SearchLimit rows, in storage order. No ranking.
func (s *SQLiteStore) SearchVerses(ctx context.Context, query string) ([]*Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, book_name, chapter, verse, text_spanish, text_tzotzil
		FROM verses
		WHERE text_spanish LIKE ? OR text_tzotzil LIKE ?
		ORDER BY book_id, chapter, verse
		LIMIT ?
	`, term, term, SearchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVerses(rows)
}

// RandomPromise returns a uniformly random promise, nil if the table is empty.
func (s *SQLiteStore) RandomPromise(ctx context.Context) (*Promise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Promise
	var imageURL sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, image_url FROM promises ORDER BY RANDOM() LIMIT 1`,
	).Scan(&p.ID, &p.Text, &imageURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.ImageURL = imageURL.String
	return &p, nil
}

// AllPromises returns every promise in storage order.
func (s *SQLiteStore) AllPromises(ctx context.Context) ([]*Promise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, image_url FROM promises`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promises []*Promise
	for rows.Next() {
		var p Promise
		var imageURL sql.NullString
		if err := rows.Scan(&p.ID, &p.Text, &imageURL); err != nil {
			return nil, err
		}
		p.ImageURL = imageURL.String
		promises = append(promises, &p)
	}
	return promises, rows.Err()
}

// CountBooks returns the number of books.
func (s *SQLiteStore) CountBooks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// CountVerses returns the number of verses.
func (s *SQLiteStore) CountVerses(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verses`).Scan(&count)
	return count, err
}

// =============================================================================
// Writes (authoring/seeding only)
// =============================================================================

// AddBook inserts a book. ID is assigned when zero.
func (s *SQLiteStore) AddBook(book *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO books (name, book_number, testament, chapters_count)
		VALUES (?, ?, ?, ?)
	`, book.Name, book.BookNumber, book.Testament, book.Chapters)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		book.ID = id
	}
	return nil
}

// AddVerse inserts a verse. ID is assigned when zero.
func (s *SQLiteStore) AddVerse(verse *Verse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO verses (book_id, book_name, chapter, verse, text_spanish, text_tzotzil)
		VALUES (?, ?, ?, ?, ?, ?)
	`, verse.BookID, verse.BookName, verse.Chapter, verse.Verse,
		nullable(verse.Text), nullable(verse.TextTzotzil))
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		verse.ID = id
	}
	return nil
}

// AddPromise inserts a promise. ID is assigned when zero.
func (s *SQLiteStore) AddPromise(promise *Promise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO promises (text, image_url) VALUES (?, ?)`,
		promise.Text, promise.ImageURL)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		promise.ID = id
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func scanVerses(rows *sql.Rows) ([]*Verse, error) {
	var verses []*Verse
	for rows.Next() {
		var v Verse
		var spanish, tzotzil sql.NullString
		if err := rows.Scan(&v.ID, &v.BookID, &v.BookName, &v.Chapter, &v.Verse, &spanish, &tzotzil); err != nil {
			return nil, err
		}
		v.Text = spanish.String
		v.TextTzotzil = tzotzil.String
		verses = append(verses, &v)
	}
	return verses, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Compile-time interface check
var _ ContentStorer = (*SQLiteStore)(nil)
