package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tzotzilbible/gobible/pkg/cache"
	"github.com/tzotzilbible/gobible/pkg/queue"
)

// historyKey is where chat history lives in the key-value cache.
const historyKey = "nevin_chat_history"

// pendingType tags queued chat items.
const pendingType = "nevin"

// QueuedMessage is returned to the UI when a send is captured offline.
// A queued message is shown as a non-error state.
const QueuedMessage = "No hay conexión a internet. Tu pregunta será procesada cuando vuelvas a estar en línea."

// OfflineClient decorates a Client so a send that fails due to
// connectivity is queued for replay instead of surfacing an error.
type OfflineClient struct {
	inner   Client
	pending queue.Store
	kv      cache.KV
	replay  *queue.Replayer
	log     *slog.Logger
}

// NewOfflineClient wraps inner with queueing. kv may be nil to skip
// history persistence.
func NewOfflineClient(inner Client, pending queue.Store, kv cache.KV, replayCfg queue.ReplayerConfig, logger *slog.Logger) *OfflineClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &OfflineClient{inner: inner, pending: pending, kv: kv, log: logger}
	c.replay = queue.NewReplayer(pending, c.resend, replayCfg)
	return c
}

// Ask forwards to the wrapped client. On failure the request is stored as
// a pending write and the caller gets a successful "queued" response.
func (c *OfflineClient) Ask(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.inner.Ask(ctx, req)
	if err == nil {
		c.appendHistory(ctx, req, resp)
		return resp, nil
	}

	payload, merr := json.Marshal(req)
	if merr != nil {
		return nil, merr
	}
	item := &queue.Item{
		Type:      pendingType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	if qerr := c.pending.Add(ctx, item); qerr != nil {
		c.log.Error("failed to queue chat request", "error", qerr)
		return nil, err
	}
	c.log.Info("chat request queued for replay", "id", item.ID, "cause", err)
	return &Response{Success: true, Response: QueuedMessage}, nil
}

// Sync replays queued requests, oldest first. Returns confirmed sends.
func (c *OfflineClient) Sync(ctx context.Context) (int, error) {
	return c.replay.Sync(ctx)
}

func (c *OfflineClient) resend(ctx context.Context, item *queue.Item) error {
	if item.Type != pendingType {
		return nil
	}
	var req Request
	if err := json.Unmarshal(item.Payload, &req); err != nil {
		// Unreadable payload can never succeed; count it delivered so
		// the replayer removes it.
		c.log.Warn("dropping malformed pending chat item", "id", item.ID)
		return nil
	}
	resp, err := c.inner.Ask(ctx, &req)
	if err != nil {
		return err
	}
	c.appendHistory(ctx, &req, resp)
	return nil
}

// appendHistory persists the exchange under the history key.
func (c *OfflineClient) appendHistory(ctx context.Context, req *Request, resp *Response) {
	if c.kv == nil || !resp.Success {
		return
	}
	history, _ := cache.GetJSON[[]Message](ctx, c.kv, historyKey)
	history = append(history,
		Message{Role: "user", Content: req.Message},
		Message{Role: "assistant", Content: resp.Response},
	)
	// History never expires; it is user data, not a cached response.
	if err := cache.SetJSON(ctx, c.kv, historyKey, history, -1); err != nil {
		c.log.Warn("chat history write failed", "error", err)
	}
}

// History returns the persisted conversation, empty when none.
func (c *OfflineClient) History(ctx context.Context) []Message {
	if c.kv == nil {
		return nil
	}
	history, _ := cache.GetJSON[[]Message](ctx, c.kv, historyKey)
	return history
}

// Compile-time interface check
var _ Client = (*OfflineClient)(nil)
