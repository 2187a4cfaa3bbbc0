// Package store provides the embedded, read-only scripture dataset for
// gobible: books, bilingual verses, and devotional promises, plus the
// lifecycle machinery that seeds and opens it.
package store

import "context"

// Book is one book of the bible. Reference data: written once at
// content-authoring time, looked up by Name, ordered by BookNumber.
type Book struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	BookNumber int    `json:"book_number"`
	Testament  string `json:"testament"`
	Chapters   int    `json:"chapters"`
}

// Verse is a single bilingual verse. Text is Spanish, TextTzotzil the
// Tzotzil rendering; either may be empty when the source corpus lacks it.
type Verse struct {
	ID          int64  `json:"id"`
	BookID      int64  `json:"book_id"`
	BookName    string `json:"book_name"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
	Text        string `json:"text"`
	TextTzotzil string `json:"text_tzotzil,omitempty"`
}

// Promise is a devotional quote shown on the home screen.
type Promise struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// SearchLimit caps search results. Matches are unranked substring hits
// returned in storage order.
const SearchLimit = 100

// ContentStorer is the interface for the local content store.
// SQLiteStore is the production implementation; MemStore backs tests.
// Reads honor context cancellation so a hung store cannot stall callers
// past their deadline.
type ContentStorer interface {
	// Reads — the fixed lookup set used by the reading app.
	ListBooks(ctx context.Context) ([]*Book, error)
	ChapterCount(ctx context.Context, bookName string) (int, error)
	VersesForChapter(ctx context.Context, bookName string, chapter int) ([]*Verse, error)
	GetVerse(ctx context.Context, bookName string, chapter, verse int) (*Verse, error)
	SearchVerses(ctx context.Context, query string) ([]*Verse, error)
	RandomPromise(ctx context.Context) (*Promise, error)
	AllPromises(ctx context.Context) ([]*Promise, error)

	// Validation counts.
	CountBooks(ctx context.Context) (int, error)
	CountVerses(ctx context.Context) (int, error)

	// Writes — used by content authoring and test seeding only; the
	// dataset is read-only at runtime.
	AddBook(book *Book) error
	AddVerse(verse *Verse) error
	AddPromise(promise *Promise) error

	// Lifecycle
	Close() error
}
