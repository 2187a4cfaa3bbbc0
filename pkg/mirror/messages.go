package mirror

import (
	"context"
	"fmt"
	"net/url"
)

// Message types of the page ↔ mirror protocol.
const (
	MsgDownloadBible    = "DOWNLOAD_BIBLE"
	MsgDownloadProgress = "DOWNLOAD_PROGRESS"
	MsgDownloadComplete = "DOWNLOAD_COMPLETE"
	MsgClearCache       = "CLEAR_CACHE"
	MsgCacheCleared     = "CACHE_CLEARED"
	MsgSkipWaiting      = "SKIP_WAITING"
)

// DownloadBook names one book to pre-fetch.
type DownloadBook struct {
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
}

// Message is a protocol message in either direction.
type Message struct {
	Type      string         `json:"type"`
	Books     []DownloadBook `json:"books,omitempty"`
	Book      string         `json:"book,omitempty"`
	Completed bool           `json:"completed,omitempty"`
}

// PostFunc delivers a reply to the page.
type PostFunc func(Message)

// HandleMessage dispatches one protocol message. post receives progress
// and completion replies; skipWaiting (may be nil) forces activation of a
// newly installed version.
func (m *Mirror) HandleMessage(ctx context.Context, msg Message, post PostFunc, skipWaiting func()) error {
	switch msg.Type {
	case MsgDownloadBible:
		return m.downloadBible(ctx, msg.Books, post)

	case MsgClearCache:
		if err := m.clearAllCaches(ctx); err != nil {
			return err
		}
		post(Message{Type: MsgCacheCleared})
		return nil

	case MsgSkipWaiting:
		if skipWaiting != nil {
			skipWaiting()
		}
		return nil

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// downloadBible bulk pre-fetches every chapter of every listed book into
// the structured DB. Per-chapter failures are logged and skipped; a
// progress message is posted per book and a completion message at the end.
func (m *Mirror) downloadBible(ctx context.Context, books []DownloadBook, post PostFunc) error {
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		for chapter := 1; chapter <= book.Chapters; chapter++ {
			req := &Request{
				Method: "GET",
				URL:    fmt.Sprintf("/api/bible/verses/%s/%d", url.PathEscape(book.Name), chapter),
			}
			resp, err := m.fetcher.Do(ctx, req)
			if err != nil || !resp.OK() {
				m.cfg.Logger.Warn("download chapter failed",
					"book", book.Name, "chapter", chapter, "error", err)
				continue
			}
			m.persistVerses(ctx, book.Name, chapter, resp)
		}
		post(Message{Type: MsgDownloadProgress, Book: book.Name, Completed: true})
	}
	post(Message{Type: MsgDownloadComplete})
	return nil
}

func (m *Mirror) clearAllCaches(ctx context.Context) error {
	names, err := m.caches.Names(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := m.caches.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
