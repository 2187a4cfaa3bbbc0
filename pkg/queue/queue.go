// Package queue holds outbound writes that failed due to connectivity and
// replays them when a sync trigger fires. A user-initiated write is never
// silently dropped: it either reaches the backend, stays queued, or is
// handed to the dead-letter callback after exhausting its attempts.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Item is one pending outbound write.
type Item struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix ms, time of the failed send

	// Replay bookkeeping.
	Attempts    int   `json:"attempts"`
	NextAttempt int64 `json:"nextAttempt"` // unix ms; 0 = eligible now
}

// Store persists pending items. All returns items in insertion order.
type Store interface {
	// Add assigns a monotonic ID and stores the item.
	Add(ctx context.Context, item *Item) error
	All(ctx context.Context) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id int64) error
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu     sync.Mutex
	items  []*Item
	nextID int64
}

// NewMemStore creates an empty in-memory pending store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

func (m *MemStore) Add(_ context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item.ID = m.nextID
	m.nextID++
	cp := *item
	m.items = append(m.items, &cp)
	return nil
}

func (m *MemStore) All(_ context.Context) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*Item, 0, len(m.items))
	for _, item := range m.items {
		cp := *item
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MemStore) Update(_ context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.items {
		if existing.ID == item.ID {
			cp := *item
			m.items[i] = &cp
			return nil
		}
	}
	return nil
}

func (m *MemStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.items {
		if existing.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Compile-time interface check
var _ Store = (*MemStore)(nil)

// SendFunc replays one item. A nil error confirms delivery.
type SendFunc func(ctx context.Context, item *Item) error

// ReplayerConfig configures retry pacing. Zero values get defaults.
type ReplayerConfig struct {
	BackoffBase time.Duration // first retry delay, default 5s
	BackoffCap  time.Duration // maximum delay, default 1h
	MaxAttempts int           // default 8
	// DeadLetter receives items that exhausted their attempts. They are
	// removed from the queue first so they cannot retry forever.
	DeadLetter func(*Item)
	// Now is the clock. Test hook.
	Now func() time.Time
}

func (c *ReplayerConfig) defaults() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Replayer drains a pending store on each sync trigger.
type Replayer struct {
	store Store
	send  SendFunc
	cfg   ReplayerConfig
}

// NewReplayer creates a Replayer.
func NewReplayer(store Store, send SendFunc, cfg ReplayerConfig) *Replayer {
	cfg.defaults()
	return &Replayer{store: store, send: send, cfg: cfg}
}

// Sync replays eligible items in insertion order. A confirmed send deletes
// its item immediately, so no item is ever replayed more than once
// successfully. A failed send leaves the item queued with its next-attempt
// time pushed back exponentially. Items whose backoff window has not
// elapsed are skipped. Returns the number of confirmed sends.
func (r *Replayer) Sync(ctx context.Context) (int, error) {
	items, err := r.store.All(ctx)
	if err != nil {
		return 0, err
	}

	now := r.cfg.Now()
	sent := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if item.NextAttempt > now.UnixMilli() {
			continue
		}

		if err := r.send(ctx, item); err == nil {
			if derr := r.store.Delete(ctx, item.ID); derr != nil {
				return sent, derr
			}
			sent++
			continue
		}

		item.Attempts++
		if item.Attempts >= r.cfg.MaxAttempts {
			if derr := r.store.Delete(ctx, item.ID); derr != nil {
				return sent, derr
			}
			if r.cfg.DeadLetter != nil {
				r.cfg.DeadLetter(item)
			}
			continue
		}
		item.NextAttempt = now.Add(r.backoff(item.Attempts)).UnixMilli()
		if uerr := r.store.Update(ctx, item); uerr != nil {
			return sent, uerr
		}
	}
	return sent, nil
}

// backoff returns the delay before attempt n+1: base doubled per failure,
// capped.
func (r *Replayer) backoff(attempts int) time.Duration {
	d := r.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= r.cfg.BackoffCap {
			return r.cfg.BackoffCap
		}
	}
	if d > r.cfg.BackoffCap {
		d = r.cfg.BackoffCap
	}
	return d
}
