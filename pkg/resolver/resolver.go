// Package resolver answers every content read through the tiered fallback
// chain: local store (when ready) → key-value cache → static default.
// Operations return best-effort values and never errors; tier failures are
// logged and absorbed.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/tzotzilbible/gobible/internal/store"
	"github.com/tzotzilbible/gobible/pkg/cache"
	"github.com/tzotzilbible/gobible/pkg/policy"
)

// Cache keys are deterministic per operation+arguments, so concurrent
// writers for the same key always write equivalent data.
func versesKey(book string, chapter int) string {
	return fmt.Sprintf("verses_%s_%d", book, chapter)
}

func verseKey(book string, chapter, verse int) string {
	return fmt.Sprintf("verse_%s_%d_%d", book, chapter, verse)
}

func chaptersKey(book string) string {
	return fmt.Sprintf("chapters_%s", book)
}

const booksKey = "books"

// Config configures a Resolver.
type Config struct {
	// TierTimeout bounds each tier attempt. Zero uses the policy default.
	TierTimeout time.Duration
	// CacheTTL controls write-back entries. Zero means 24h, matching the
	// verse cache of the mobile app.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Resolver is the native tiered resolver.
type Resolver struct {
	life *store.Lifecycle
	kv   cache.KV
	cfg  Config
	pol  policy.Config
}

// New creates a Resolver over a store lifecycle and a key-value cache.
func New(life *store.Lifecycle, kv cache.KV, cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Resolver{
		life: life,
		kv:   kv,
		cfg:  cfg,
		pol:  policy.Config{TierTimeout: cfg.TierTimeout, Logger: cfg.Logger},
	}
}

// GetBooks returns all books. Fallback: the bundled 66-book list.
func (r *Resolver) GetBooks(ctx context.Context) []*store.Book {
	return policy.Resolve(ctx, r.pol, []policy.Source[[]*store.Book]{
		{Name: "store:books", Try: func(ctx context.Context) ([]*store.Book, bool) {
			st, ok := r.life.Store()
			if !ok {
				return nil, false
			}
			books, err := st.ListBooks(ctx)
			if err != nil {
				r.cfg.Logger.Warn("store books query failed", "error", err)
				return nil, false
			}
			return books, len(books) > 0
		}},
		{Name: "cache:books", Try: func(ctx context.Context) ([]*store.Book, bool) {
			books, ok := cache.GetJSON[[]*store.Book](ctx, r.kv, booksKey)
			return books, ok && len(books) > 0
		}},
	}, DefaultBooks)
}

// GetChapters returns the chapter numbers of a book, 1..N. Fallback: the
// bundled book list; an unknown book yields an empty slice.
func (r *Resolver) GetChapters(ctx context.Context, book string) []int {
	return policy.Resolve(ctx, r.pol, []policy.Source[[]int]{
		{Name: "store:chapters", Try: func(ctx context.Context) ([]int, bool) {
			st, ok := r.life.Store()
			if !ok {
				return nil, false
			}
			count, err := st.ChapterCount(ctx, book)
			if err != nil {
				r.cfg.Logger.Warn("store chapter count failed", "book", book, "error", err)
				return nil, false
			}
			return chapterRange(count), count > 0
		}},
		{Name: "cache:chapters", Try: func(ctx context.Context) ([]int, bool) {
			chapters, ok := cache.GetJSON[[]int](ctx, r.kv, chaptersKey(book))
			return chapters, ok && len(chapters) > 0
		}},
	}, func() []int {
		for _, b := range DefaultBooks() {
			if b.Name == book {
				return chapterRange(b.Chapters)
			}
		}
		return []int{}
	})
}

// GetVerses returns the verses of a chapter. A store hit is written back
// to the cache. Fallback: a single loading-sentinel verse.
func (r *Resolver) GetVerses(ctx context.Context, book string, chapter int) []*store.Verse {
	return policy.Resolve(ctx, r.pol, []policy.Source[[]*store.Verse]{
		{Name: "store:verses", Try: func(ctx context.Context) ([]*store.Verse, bool) {
			st, ok := r.life.Store()
			if !ok {
				return nil, false
			}
			verses, err := st.VersesForChapter(ctx, book, chapter)
			if err != nil {
				r.cfg.Logger.Warn("store verses query failed",
					"book", book, "chapter", chapter, "error", err)
				return nil, false
			}
			if len(verses) == 0 {
				return nil, false
			}
			if err := cache.SetJSON(ctx, r.kv, versesKey(book, chapter), verses, r.cfg.CacheTTL); err != nil {
				r.cfg.Logger.Warn("verse cache write-back failed", "error", err)
			}
			return verses, true
		}},
		{Name: "cache:verses", Try: func(ctx context.Context) ([]*store.Verse, bool) {
			verses, ok := cache.GetJSON[[]*store.Verse](ctx, r.kv, versesKey(book, chapter))
			return verses, ok && len(verses) > 0
		}},
	}, func() []*store.Verse {
		return []*store.Verse{loadingVerse(book, chapter)}
	})
}

// GetVerse returns a single verse, or nil when it exists in no tier.
// Store hits are written back under their own key so the verse stays
// reachable from the cache tier offline.
func (r *Resolver) GetVerse(ctx context.Context, book string, chapter, verse int) *store.Verse {
	return policy.Resolve(ctx, r.pol, []policy.Source[*store.Verse]{
		{Name: "store:verse", Try: func(ctx context.Context) (*store.Verse, bool) {
			st, ok := r.life.Store()
			if !ok {
				return nil, false
			}
			v, err := st.GetVerse(ctx, book, chapter, verse)
			if err != nil {
				r.cfg.Logger.Warn("store verse query failed", "error", err)
				return nil, false
			}
			if v == nil {
				return nil, false
			}
			if err := cache.SetJSON(ctx, r.kv, verseKey(book, chapter, verse), v, r.cfg.CacheTTL); err != nil {
				r.cfg.Logger.Warn("verse cache write-back failed", "error", err)
			}
			return v, true
		}},
		{Name: "cache:verse", Try: func(ctx context.Context) (*store.Verse, bool) {
			v, ok := cache.GetJSON[*store.Verse](ctx, r.kv, verseKey(book, chapter, verse))
			return v, ok && v != nil
		}},
	}, func() *store.Verse { return nil })
}

// SearchVerses does a substring search. Zero matches is an empty slice,
// never a fallback record; results cap at store.SearchLimit.
func (r *Resolver) SearchVerses(ctx context.Context, query string) []*store.Verse {
	if query == "" {
		return []*store.Verse{}
	}
	return policy.Resolve(ctx, r.pol, []policy.Source[[]*store.Verse]{
		{Name: "store:search", Try: func(ctx context.Context) ([]*store.Verse, bool) {
			st, ok := r.life.Store()
			if !ok {
				return nil, false
			}
			verses, err := st.SearchVerses(ctx, query)
			if err != nil {
				r.cfg.Logger.Warn("store search failed", "error", err)
				return nil, false
			}
			// An empty result from a ready store is authoritative for
			// search: no lower tier can know better.
			return verses, true
		}},
	}, func() []*store.Verse { return []*store.Verse{} })
}

// GetRandomPromise returns a devotional quote. The store tier uses SQL's
// uniform RANDOM(); the fallback picks uniformly from the bundled list.
func (r *Resolver) GetRandomPromise(ctx context.Context) string {
	return policy.Resolve(ctx, r.pol, []policy.Source[string]{
		{Name: "store:promise", Try: func(ctx context.Context) (string, bool) {
			st, ok := r.life.Store()
			if !ok {
				return "", false
			}
			p, err := st.RandomPromise(ctx)
			if err != nil {
				r.cfg.Logger.Warn("store promise query failed", "error", err)
				return "", false
			}
			if p == nil {
				return "", false
			}
			return p.Text, true
		}},
	}, func() string {
		return offlinePromises[rand.Intn(len(offlinePromises))]
	})
}

// GetAllPromises returns every promise, falling back to the bundled list.
func (r *Resolver) GetAllPromises(ctx context.Context) []*store.Promise {
	return policy.Resolve(ctx, r.pol, []policy.Source[[]*store.Promise]{
		{Name: "store:promises", Try: func(ctx context.Context) ([]*store.Promise, bool) {
			st, ok := r.life.Store()
			if !ok {
				return nil, false
			}
			promises, err := st.AllPromises(ctx)
			if err != nil {
				r.cfg.Logger.Warn("store promises query failed", "error", err)
				return nil, false
			}
			return promises, len(promises) > 0
		}},
	}, func() []*store.Promise {
		promises := make([]*store.Promise, len(offlinePromises))
		for i, text := range offlinePromises {
			promises[i] = &store.Promise{ID: int64(i + 1), Text: text}
		}
		return promises
	})
}

// ClearCache drops all bible content entries from the key-value cache.
func (r *Resolver) ClearCache(ctx context.Context) {
	err := cache.RemoveByPrefix(ctx, r.kv,
		"bible_", "books", "chapters_", "verses_", "verse_")
	if err != nil {
		r.cfg.Logger.Warn("cache clear failed", "error", err)
	}
}

func chapterRange(count int) []int {
	chapters := make([]int, count)
	for i := range chapters {
		chapters[i] = i + 1
	}
	return chapters
}
