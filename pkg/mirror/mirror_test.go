package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tzotzilbible/gobible/pkg/queue"
)

// fakeFetcher serves scripted responses by URL and records every request.
// URLs without a script entry fail like a dead network.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*Response
	requests  []*Request
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string]*Response)}
}

func (f *fakeFetcher) serve(url string, resp *Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = resp
}

func (f *fakeFetcher) offline() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = make(map[string]*Response)
}

func (f *fakeFetcher) Do(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if resp, ok := f.responses[req.URL]; ok {
		return resp, nil
	}
	return nil, errors.New("network unreachable")
}

func (f *fakeFetcher) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestMirror(t *testing.T) (*Mirror, *fakeFetcher, *MemCacheStorage, *MemDB, *queue.MemStore) {
	fetcher := newFakeFetcher()
	caches := NewMemCacheStorage()
	db := NewMemDB()
	pending := queue.NewMemStore()
	m := New(fetcher, caches, db, pending, Config{
		TierTimeout: -1, // no deadlines in tests
	})
	t.Cleanup(func() { db.Close() })
	return m, fetcher, caches, db, pending
}

const versesJSON = `{"verses":[
	{"verse":1,"spanish_text":"En el principio era el Verbo","tzotzil_text":"Ta sliqueb to'ox"},
	{"verse":2,"spanish_text":"Este era en el principio con Dios","tzotzil_text":""}
]}`

func TestMirror_VersesNetworkHitPersists(t *testing.T) {
	ctx := context.Background()
	m, fetcher, caches, db, _ := newTestMirror(t)

	url := "/api/bible/verses/Juan/1"
	fetcher.serve(url, &Response{Status: 200, ContentType: "application/json", Body: []byte(versesJSON)})

	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: url})
	require.True(t, resp.OK())
	assert.JSONEq(t, versesJSON, string(resp.Body))

	// Parsed into the structured DB.
	verses, err := db.VersesByChapter(ctx, "Juan", 1)
	require.NoError(t, err)
	require.Len(t, verses, 2)
	assert.Equal(t, "Juan-1-1", verses[0].ID)
	assert.Equal(t, "En el principio era el Verbo", verses[0].SpanishText)

	// And the raw response is cached under the versioned bible cache.
	cached, ok, err := caches.Match(ctx, &Request{Method: "GET", URL: url})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resp.Body, cached.Body)
}

func TestMirror_VersesOfflineServedFromStructuredDB(t *testing.T) {
	ctx := context.Background()
	m, fetcher, _, _, _ := newTestMirror(t)

	url := "/api/bible/verses/Juan/1"
	fetcher.serve(url, &Response{Status: 200, ContentType: "application/json", Body: []byte(versesJSON)})
	_ = m.HandleFetch(ctx, &Request{Method: "GET", URL: url})

	fetcher.offline()
	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: url})
	require.True(t, resp.OK())

	var payload struct {
		Verses  []StoredVerse `json:"verses"`
		Offline bool          `json:"offline"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.True(t, payload.Offline)
	require.Len(t, payload.Verses, 2)
	assert.Equal(t, "Ta sliqueb to'ox", payload.Verses[0].TzotzilText)
}

func TestMirror_VersesOfflineNothingStoredIs503(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, _ := newTestMirror(t)

	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: "/api/bible/verses/Juan/1"})
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.Status)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.Equal(t, true, payload["offline"])
	assert.Equal(t, "No hay datos disponibles offline", payload["error"])
}

func TestMirror_BooksOfflineServedFromStructuredDB(t *testing.T) {
	ctx := context.Background()
	m, fetcher, _, _, _ := newTestMirror(t)

	url := "/api/bible/books"
	fetcher.serve(url, &Response{Status: 200, ContentType: "application/json",
		Body: []byte(`{"books":[{"name":"Juan","chapters":21},{"name":"Salmos","chapters":150}]}`)})
	_ = m.HandleFetch(ctx, &Request{Method: "GET", URL: url})

	fetcher.offline()
	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: url})
	require.True(t, resp.OK())

	var payload struct {
		Books   []StoredBook `json:"books"`
		Offline bool         `json:"offline"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.True(t, payload.Offline)
	assert.Len(t, payload.Books, 2)
}

func TestMirror_APIOfflineServedFromHTTPCache(t *testing.T) {
	ctx := context.Background()
	m, fetcher, _, _, _ := newTestMirror(t)

	url := "/api/promises/random"
	fetcher.serve(url, &Response{Status: 200, ContentType: "application/json", Body: []byte(`{"text":"promesa"}`)})
	_ = m.HandleFetch(ctx, &Request{Method: "GET", URL: url})

	fetcher.offline()
	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: url})
	require.True(t, resp.OK())
	assert.JSONEq(t, `{"text":"promesa"}`, string(resp.Body))
}

func TestMirror_InstallPrecachesAndSkipsFailures(t *testing.T) {
	ctx := context.Background()
	fetcher := newFakeFetcher()
	caches := NewMemCacheStorage()
	m := New(fetcher, caches, NewMemDB(), queue.NewMemStore(), Config{
		StaticAssets: []string{"/", "/static/css/style.css", "/missing.css"},
		TierTimeout:  -1,
	})

	fetcher.serve("/", &Response{Status: 200, ContentType: "text/html", Body: []byte("<html>shell</html>")})
	fetcher.serve("/static/css/style.css", &Response{Status: 200, ContentType: "text/css", Body: []byte("body{}")})

	require.NoError(t, m.Install(ctx))

	_, ok, err := caches.Match(ctx, &Request{Method: "GET", URL: "/"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = caches.Match(ctx, &Request{Method: "GET", URL: "/missing.css"})
	require.NoError(t, err)
	assert.False(t, ok, "failed precache is skipped, not stored")
}

func TestMirror_ActivateDropsOldVersionCaches(t *testing.T) {
	ctx := context.Background()
	m, _, caches, _, _ := newTestMirror(t)

	stale := &Response{Status: 200, Body: []byte("old")}
	require.NoError(t, caches.Put(ctx, "tzotzil-bible-v2", &Request{URL: "/a"}, stale))
	require.NoError(t, caches.Put(ctx, "static-assets-v2", &Request{URL: "/b"}, stale))
	require.NoError(t, caches.Put(ctx, "static-assets-"+Version, &Request{URL: "/c"}, stale))

	require.NoError(t, m.Activate(ctx))

	names, err := caches.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"static-assets-" + Version}, names)
}

func TestMirror_StaticCacheFirst(t *testing.T) {
	ctx := context.Background()
	m, fetcher, caches, _, _ := newTestMirror(t)

	url := "/static/css/style.css"
	cached := &Response{Status: 200, ContentType: "text/css", Body: []byte("body{}")}
	require.NoError(t, caches.Put(ctx, "static-assets-"+Version, &Request{Method: "GET", URL: url}, cached))

	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: url})
	require.True(t, resp.OK())
	assert.Equal(t, cached.Body, resp.Body)
	_ = fetcher // background revalidation may or may not have fired yet
}

func TestMirror_NavigationFallsBackToShell(t *testing.T) {
	ctx := context.Background()
	m, _, caches, _, _ := newTestMirror(t)

	shell := &Response{Status: 200, ContentType: "text/html", Body: []byte("<html>shell</html>")}
	require.NoError(t, caches.Put(ctx, "static-assets-"+Version, &Request{Method: "GET", URL: "/"}, shell))

	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: "/chat.html", Navigate: true})
	require.True(t, resp.OK())
	assert.Equal(t, shell.Body, resp.Body)
}

func TestMirror_StaticFullyOfflineIs503(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, _ := newTestMirror(t)

	resp := m.HandleFetch(ctx, &Request{Method: "GET", URL: "/static/js/app.js"})
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.Status)
	assert.Equal(t, "Offline", string(resp.Body))
}

func TestMirror_ChatSuccessAppendsHistory(t *testing.T) {
	ctx := context.Background()
	m, fetcher, _, db, pending := newTestMirror(t)

	fetcher.serve(DefaultChatEndpoint, &Response{Status: 200, ContentType: "application/json",
		Body: []byte(`{"question":"¿Quién es Dios?","response":"Dios es amor"}`)})

	resp := m.HandleFetch(ctx, &Request{
		Method: "POST",
		URL:    DefaultChatEndpoint,
		Body:   []byte(`{"message":"¿Quién es Dios?"}`),
	})
	require.True(t, resp.OK())

	history := db.History()
	require.Len(t, history, 1)
	assert.Equal(t, "¿Quién es Dios?", history[0].Question)
	assert.Equal(t, "Dios es amor", history[0].Response)

	items, err := pending.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMirror_ChatOfflineQueuesAndAcknowledges(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, pending := newTestMirror(t)

	body := []byte(`{"message":"¿Quién es Dios?"}`)
	resp := m.HandleFetch(ctx, &Request{Method: "POST", URL: DefaultChatEndpoint, Body: body})

	// Queued is success from the page's point of view.
	require.Equal(t, 200, resp.Status)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &payload))
	assert.Equal(t, true, payload["queued"])
	assert.Equal(t, true, payload["offline"])

	items, err := pending.All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "nevin", items[0].Type)
	assert.JSONEq(t, string(body), string(items[0].Payload))
}

func TestMirror_SyncPendingReplaysQueuedChat(t *testing.T) {
	ctx := context.Background()
	m, fetcher, _, _, pending := newTestMirror(t)

	body := []byte(`{"message":"pendiente"}`)
	_ = m.HandleFetch(ctx, &Request{Method: "POST", URL: DefaultChatEndpoint, Body: body})

	// Connectivity returns.
	fetcher.serve(DefaultChatEndpoint, &Response{Status: 200, ContentType: "application/json", Body: []byte(`{}`)})

	sent, err := m.SyncPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	items, err := pending.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	// The replayed request carried the original payload.
	last := fetcher.requests[len(fetcher.requests)-1]
	assert.Equal(t, "POST", last.Method)
	assert.JSONEq(t, string(body), string(last.Body))
}

func TestMirror_SyncPendingKeepsUndeliveredItems(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, pending := newTestMirror(t)

	_ = m.HandleFetch(ctx, &Request{Method: "POST", URL: DefaultChatEndpoint, Body: []byte(`{"m":"x"}`)})

	sent, err := m.SyncPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	items, err := pending.All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1, "still queued while offline")
}

func TestMirror_HandleMessage_DownloadBible(t *testing.T) {
	ctx := context.Background()
	m, fetcher, _, db, _ := newTestMirror(t)

	fetcher.serve("/api/bible/verses/Juan/1", &Response{Status: 200, Body: []byte(versesJSON)})
	fetcher.serve("/api/bible/verses/Juan/2", &Response{Status: 200, Body: []byte(versesJSON)})
	// Chapter 3 missing: skipped, not fatal.

	var posted []Message
	err := m.HandleMessage(ctx, Message{
		Type:  MsgDownloadBible,
		Books: []DownloadBook{{Name: "Juan", Chapters: 3}},
	}, func(msg Message) { posted = append(posted, msg) }, nil)
	require.NoError(t, err)

	require.Len(t, posted, 2)
	assert.Equal(t, MsgDownloadProgress, posted[0].Type)
	assert.Equal(t, "Juan", posted[0].Book)
	assert.True(t, posted[0].Completed)
	assert.Equal(t, MsgDownloadComplete, posted[1].Type)

	verses, err := db.VersesByChapter(ctx, "Juan", 2)
	require.NoError(t, err)
	assert.Len(t, verses, 2)
}

func TestMirror_HandleMessage_ClearCache(t *testing.T) {
	ctx := context.Background()
	m, _, caches, _, _ := newTestMirror(t)

	require.NoError(t, caches.Put(ctx, "bible-content-"+Version, &Request{URL: "/a"}, &Response{Status: 200}))

	var posted []Message
	err := m.HandleMessage(ctx, Message{Type: MsgClearCache},
		func(msg Message) { posted = append(posted, msg) }, nil)
	require.NoError(t, err)

	require.Len(t, posted, 1)
	assert.Equal(t, MsgCacheCleared, posted[0].Type)

	names, err := caches.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMirror_HandleMessage_SkipWaiting(t *testing.T) {
	m, _, _, _, _ := newTestMirror(t)

	called := false
	err := m.HandleMessage(context.Background(), Message{Type: MsgSkipWaiting},
		func(Message) {}, func() { called = true })
	require.NoError(t, err)
	assert.True(t, called)
}

func TestMirror_HandleMessage_UnknownType(t *testing.T) {
	m, _, _, _, _ := newTestMirror(t)

	err := m.HandleMessage(context.Background(), Message{Type: "NOPE"}, func(Message) {}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown message type")
}
