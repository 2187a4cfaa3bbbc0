package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tzotzilbible/gobible/pkg/policy"
	"github.com/tzotzilbible/gobible/pkg/queue"
)

// Version is the default cache version tag. Bumping it drops every
// previously created cache on the next activation.
const Version = "v3"

// Cache name bases. The full name is "{base}-{version}".
const (
	mainCacheBase   = "tzotzil-bible"
	staticCacheBase = "static-assets"
	bibleCacheBase  = "bible-content"
	apiCacheBase    = "api-responses"
)

// DefaultChatEndpoint receives replayed chat writes.
const DefaultChatEndpoint = "/api/nevin/chat"

// queuedChatBody is returned to the page when a chat send is captured
// offline. A queued message is a non-error state.
var queuedChatBody = map[string]any{
	"response": "No hay conexión a internet. Tu pregunta será procesada cuando vuelvas a estar en línea.",
	"offline":  true,
	"queued":   true,
}

// Config configures a Mirror.
type Config struct {
	// Version tag suffixed onto every cache name. Defaults to Version.
	Version string
	// StaticAssets are pre-cached on Install.
	StaticAssets []string
	// ChatEndpoint is where queued chat writes are replayed.
	ChatEndpoint string
	// TierTimeout bounds each strategy tier. Zero uses the policy default.
	TierTimeout time.Duration
	Replay      queue.ReplayerConfig
	Logger      *slog.Logger
}

// Mirror is the browser-runtime twin of the native tiered resolver.
type Mirror struct {
	cfg     Config
	fetcher Fetcher
	caches  CacheStorage
	db      StructuredDB
	pending queue.Store
	replay  *queue.Replayer
	pol     policy.Config
}

// New wires a Mirror from its collaborators.
func New(fetcher Fetcher, caches CacheStorage, db StructuredDB, pending queue.Store, cfg Config) *Mirror {
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.ChatEndpoint == "" {
		cfg.ChatEndpoint = DefaultChatEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Mirror{
		cfg:     cfg,
		fetcher: fetcher,
		caches:  caches,
		db:      db,
		pending: pending,
		pol:     policy.Config{TierTimeout: cfg.TierTimeout, Logger: cfg.Logger},
	}
	m.replay = queue.NewReplayer(pending, m.replayChat, cfg.Replay)
	return m
}

func (m *Mirror) cacheName(base string) string {
	return base + "-" + m.cfg.Version
}

// Install pre-caches the configured static assets. Individual fetch
// failures are logged and skipped; install itself does not fail on them.
func (m *Mirror) Install(ctx context.Context) error {
	for _, asset := range m.cfg.StaticAssets {
		req := &Request{Method: "GET", URL: asset}
		resp, err := m.fetcher.Do(ctx, req)
		if err != nil || !resp.OK() {
			m.cfg.Logger.Warn("static precache miss", "asset", asset, "error", err)
			continue
		}
		if err := m.caches.Put(ctx, m.cacheName(staticCacheBase), req, resp); err != nil {
			return fmt.Errorf("precache %s: %w", asset, err)
		}
	}
	return nil
}

// Activate deletes every cache whose name does not carry the current
// version tag. Freshly tagged caches are left untouched.
func (m *Mirror) Activate(ctx context.Context) error {
	names, err := m.caches.Names(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.Contains(name, m.cfg.Version) {
			continue
		}
		m.cfg.Logger.Info("deleting old cache", "name", name)
		if _, err := m.caches.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// HandleFetch classifies the request and applies its strategy. It never
// returns nil and never fails upward; every failure path resolves to a
// cached or synthetic response.
func (m *Mirror) HandleFetch(ctx context.Context, req *Request) *Response {
	switch Classify(req) {
	case RouteChat:
		return m.handleChat(ctx, req)
	case RouteVerses:
		return m.handleVerses(ctx, req)
	case RouteBooks:
		return m.handleBooks(ctx, req)
	case RouteAPI:
		return m.handleAPI(ctx, req)
	case RouteStatic:
		return m.handleStatic(ctx, req)
	case RouteBypass:
		return m.passthrough(ctx, req)
	default:
		return m.handleOther(ctx, req)
	}
}

// passthrough sends the request unmodified; a transport failure still gets
// a synthetic offline response rather than an error.
func (m *Mirror) passthrough(ctx context.Context, req *Request) *Response {
	resp, err := m.fetcher.Do(ctx, req)
	if err != nil {
		return offlineResponse()
	}
	return resp
}

// networkSource is the shared tier-1: fetch, and on success run persist
// (which may store into the structured DB and/or HTTP cache).
func (m *Mirror) networkSource(req *Request, persist func(ctx context.Context, resp *Response)) policy.Source[*Response] {
	return policy.Source[*Response]{
		Name: "network",
		Try: func(ctx context.Context) (*Response, bool) {
			resp, err := m.fetcher.Do(ctx, req)
			if err != nil || !resp.OK() {
				return nil, false
			}
			if persist != nil {
				persist(ctx, resp)
			}
			return resp, true
		},
	}
}

// httpCacheSource is the raw response-cache tier.
func (m *Mirror) httpCacheSource(req *Request) policy.Source[*Response] {
	return policy.Source[*Response]{
		Name: "http-cache",
		Try: func(ctx context.Context) (*Response, bool) {
			resp, ok, err := m.caches.Match(ctx, req)
			return resp, err == nil && ok
		},
	}
}

// versesPayload is the wire shape of the verse endpoint.
type versesPayload struct {
	Verses []struct {
		Verse       int    `json:"verse"`
		TzotzilText string `json:"tzotzil_text"`
		SpanishText string `json:"spanish_text"`
	} `json:"verses"`
}

func (m *Mirror) handleVerses(ctx context.Context, req *Request) *Response {
	book, chapter, parsed := parseVersePath(req.URL)

	return policy.Resolve(ctx, m.pol, []policy.Source[*Response]{
		m.networkSource(req, func(ctx context.Context, resp *Response) {
			if !parsed {
				return
			}
			m.persistVerses(ctx, book, chapter, resp)
			if err := m.caches.Put(ctx, m.cacheName(bibleCacheBase), req, resp); err != nil {
				m.cfg.Logger.Warn("verse response cache put failed", "error", err)
			}
		}),
		{Name: "structured-db", Try: func(ctx context.Context) (*Response, bool) {
			if !parsed {
				return nil, false
			}
			verses, err := m.db.VersesByChapter(ctx, book, chapter)
			if err != nil || len(verses) == 0 {
				return nil, false
			}
			return jsonResponse(200, map[string]any{
				"verses":  verses,
				"offline": true,
			}), true
		}},
		m.httpCacheSource(req),
	}, offlineResponse)
}

// persistVerses opportunistically parses a verse response into the
// structured DB. Parse failures only cost the offline copy.
func (m *Mirror) persistVerses(ctx context.Context, book string, chapter int, resp *Response) {
	var payload versesPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil || len(payload.Verses) == 0 {
		return
	}
	stored := make([]StoredVerse, 0, len(payload.Verses))
	for i, v := range payload.Verses {
		num := v.Verse
		if num == 0 {
			num = i + 1
		}
		stored = append(stored, StoredVerse{
			ID:          fmt.Sprintf("%s-%d-%d", book, chapter, num),
			Book:        book,
			Chapter:     chapter,
			Verse:       num,
			TzotzilText: v.TzotzilText,
			SpanishText: v.SpanishText,
		})
	}
	if err := m.db.SaveVerses(ctx, stored); err != nil {
		m.cfg.Logger.Warn("verse persist failed", "book", book, "chapter", chapter, "error", err)
	}
}

// booksPayload is the wire shape of the books endpoint.
type booksPayload struct {
	Books []struct {
		Name     string `json:"name"`
		Chapters int    `json:"chapters"`
	} `json:"books"`
}

func (m *Mirror) handleBooks(ctx context.Context, req *Request) *Response {
	return policy.Resolve(ctx, m.pol, []policy.Source[*Response]{
		m.networkSource(req, func(ctx context.Context, resp *Response) {
			var payload booksPayload
			if err := json.Unmarshal(resp.Body, &payload); err == nil && len(payload.Books) > 0 {
				stored := make([]StoredBook, 0, len(payload.Books))
				for _, b := range payload.Books {
					stored = append(stored, StoredBook{Name: b.Name, Chapters: b.Chapters})
				}
				if err := m.db.SaveBooks(ctx, stored); err != nil {
					m.cfg.Logger.Warn("book persist failed", "error", err)
				}
			}
			if err := m.caches.Put(ctx, m.cacheName(apiCacheBase), req, resp); err != nil {
				m.cfg.Logger.Warn("books response cache put failed", "error", err)
			}
		}),
		{Name: "structured-db", Try: func(ctx context.Context) (*Response, bool) {
			books, err := m.db.Books(ctx)
			if err != nil || len(books) == 0 {
				return nil, false
			}
			return jsonResponse(200, map[string]any{
				"books":   books,
				"offline": true,
			}), true
		}},
		m.httpCacheSource(req),
	}, offlineResponse)
}

func (m *Mirror) handleAPI(ctx context.Context, req *Request) *Response {
	return policy.Resolve(ctx, m.pol, []policy.Source[*Response]{
		m.networkSource(req, func(ctx context.Context, resp *Response) {
			if err := m.caches.Put(ctx, m.cacheName(apiCacheBase), req, resp); err != nil {
				m.cfg.Logger.Warn("api response cache put failed", "error", err)
			}
		}),
		m.httpCacheSource(req),
	}, offlineResponse)
}

// handleStatic serves cache-first: a cached asset is returned immediately
// and revalidated in the background without blocking the response.
func (m *Mirror) handleStatic(ctx context.Context, req *Request) *Response {
	if cached, ok, err := m.caches.Match(ctx, req); err == nil && ok {
		go m.revalidate(context.WithoutCancel(ctx), req)
		return cached
	}

	return policy.Resolve(ctx, m.pol, []policy.Source[*Response]{
		m.networkSource(req, func(ctx context.Context, resp *Response) {
			if err := m.caches.Put(ctx, m.cacheName(staticCacheBase), req, resp); err != nil {
				m.cfg.Logger.Warn("static cache put failed", "error", err)
			}
		}),
		{Name: "shell", Try: func(ctx context.Context) (*Response, bool) {
			if !req.Navigate && !strings.HasSuffix(requestPath(req.URL), ".html") {
				return nil, false
			}
			shell, ok, err := m.caches.Match(ctx, &Request{Method: "GET", URL: "/"})
			return shell, err == nil && ok
		}},
	}, func() *Response {
		return &Response{Status: 503, ContentType: "text/plain", Body: []byte("Offline")}
	})
}

func (m *Mirror) revalidate(ctx context.Context, req *Request) {
	resp, err := m.fetcher.Do(ctx, req)
	if err != nil || !resp.OK() {
		return
	}
	if err := m.caches.Put(ctx, m.cacheName(staticCacheBase), req, resp); err != nil {
		m.cfg.Logger.Warn("static revalidate put failed", "error", err)
	}
}

func (m *Mirror) handleOther(ctx context.Context, req *Request) *Response {
	return policy.Resolve(ctx, m.pol, []policy.Source[*Response]{
		{Name: "network", Try: func(ctx context.Context) (*Response, bool) {
			resp, err := m.fetcher.Do(ctx, req)
			return resp, err == nil
		}},
		m.httpCacheSource(req),
	}, offlineResponse)
}

// chatPayload is what the chat endpoint answers with on success.
type chatPayload struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

// handleChat is network-only. A successful exchange lands in local chat
// history; a failed send is queued and acknowledged as queued, not failed.
func (m *Mirror) handleChat(ctx context.Context, req *Request) *Response {
	resp, err := m.fetcher.Do(ctx, req)
	if err == nil && resp.OK() {
		var payload chatPayload
		if jerr := json.Unmarshal(resp.Body, &payload); jerr == nil {
			entry := HistoryEntry{
				Timestamp: time.Now().UnixMilli(),
				Question:  payload.Question,
				Response:  payload.Response,
			}
			if herr := m.db.AppendHistory(ctx, entry); herr != nil {
				m.cfg.Logger.Warn("chat history append failed", "error", herr)
			}
		}
		return resp
	}

	item := &queue.Item{
		Type:      "nevin",
		Payload:   json.RawMessage(req.Body),
		Timestamp: time.Now().UnixMilli(),
	}
	if qerr := m.pending.Add(ctx, item); qerr != nil {
		m.cfg.Logger.Error("failed to queue chat write", "error", qerr)
		return offlineResponse()
	}
	m.cfg.Logger.Info("chat write queued", "id", item.ID)
	return jsonResponse(200, queuedChatBody)
}

// SyncPending replays queued chat writes, oldest first. Confirmed sends
// are deleted; failures stay queued for the next trigger, paced by the
// replayer's backoff.
func (m *Mirror) SyncPending(ctx context.Context) (int, error) {
	return m.replay.Sync(ctx)
}

func (m *Mirror) replayChat(ctx context.Context, item *queue.Item) error {
	if item.Type != "nevin" {
		return nil // unknown types are dropped as delivered
	}
	resp, err := m.fetcher.Do(ctx, &Request{
		Method: "POST",
		URL:    m.cfg.ChatEndpoint,
		Body:   item.Payload,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("replay rejected with status %d", resp.Status)
	}
	return nil
}
