// Package mirror reimplements the tiered resolution of the native layer
// inside a browser-style runtime: a structured client-side database plus
// an HTTP response cache, with a per-route-class strategy for every
// intercepted fetch and a postMessage protocol for bulk pre-fetch and
// cache control.
package mirror

import (
	"context"
	"encoding/json"
)

// Request is the intercepted fetch. URL may be path-only.
type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   []byte `json:"body,omitempty"`
	// Navigate marks a top-level navigation, which falls back to the
	// cached shell when offline.
	Navigate bool `json:"navigate,omitempty"`
}

// Response is what the mirror hands back to the page. HandleFetch never
// returns nil: offline conditions become synthetic JSON responses.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

func jsonResponse(status int, v any) *Response {
	body, _ := json.Marshal(v)
	return &Response{Status: status, ContentType: "application/json", Body: body}
}

// offlineResponse is the typed "unavailable offline" payload.
func offlineResponse() *Response {
	return jsonResponse(503, map[string]any{
		"error":   "No hay datos disponibles offline",
		"offline": true,
	})
}

// Fetcher performs the network tier.
type Fetcher interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// CacheStorage is the versioned HTTP response cache, shaped after the
// browser Cache API: named caches, matched across all of them.
type CacheStorage interface {
	// Match looks a request up across every cache.
	Match(ctx context.Context, req *Request) (*Response, bool, error)
	// Put stores a response in the named cache, keyed by the request URL.
	Put(ctx context.Context, cacheName string, req *Request, resp *Response) error
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, cacheName string) (bool, error)
}

// StoredVerse is a verse row in the structured database. ID is
// "{book}-{chapter}-{verse}".
type StoredVerse struct {
	ID          string `json:"id"`
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
	TzotzilText string `json:"tzotzil_text,omitempty"`
	SpanishText string `json:"spanish_text,omitempty"`
}

// StoredBook is a book row in the structured database, keyed by name.
type StoredBook struct {
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
}

// HistoryEntry is one AI chat exchange kept locally.
type HistoryEntry struct {
	ID        int64  `json:"id,omitempty"` // auto-assigned
	Timestamp int64  `json:"timestamp"`
	Question  string `json:"question,omitempty"`
	Response  string `json:"response,omitempty"`
}

// StructuredDB is the browser-side structured store mirroring the local
// content store's role. Writes are idempotent upserts keyed by ID/Name.
type StructuredDB interface {
	SaveVerses(ctx context.Context, verses []StoredVerse) error
	VersesByChapter(ctx context.Context, book string, chapter int) ([]StoredVerse, error)
	SaveBooks(ctx context.Context, books []StoredBook) error
	Books(ctx context.Context) ([]StoredBook, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	Close() error
}
