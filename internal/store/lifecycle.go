package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// InitStatus is the lifecycle state of the local content store.
type InitStatus string

const (
	StatusPending      InitStatus = "pending"
	StatusInitializing InitStatus = "initializing"
	StatusReady        InitStatus = "ready"
	StatusWebFallback  InitStatus = "web_fallback"
	StatusFailed       InitStatus = "failed"
)

// Validation thresholds for the shipped dataset. A seeded database with
// fewer rows than this is treated as a corrupt or incomplete copy.
const (
	ExpectedBooksCount = 66
	ExpectedVersesMin  = 31000
)

// Opener opens the content store once seeding is done.
type Opener func() (ContentStorer, error)

// LifecycleConfig configures a Lifecycle. Zero values get defaults.
type LifecycleConfig struct {
	// Seeder copies the bundled asset into place before opening.
	// Nil skips the copy step.
	Seeder *Seeder
	// Opener opens the store. Nil means the platform has no embedded
	// storage; initialization resolves to web_fallback.
	Opener Opener
	// MinBooks/MinVerses are the validation thresholds. Zero uses the
	// shipped-dataset defaults. Validation never accepts zero rows.
	MinBooks  int
	MinVerses int
	// PollInterval is the wait between status re-reads when another
	// caller is already initializing. Defaults to 100ms.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Lifecycle coordinates first-time setup of the content store exactly once
// per process, safely under concurrent callers. It is an explicitly
// constructed component: callers hold a reference, there is no package
// global.
//
// States: pending → initializing → {ready, web_fallback, failed};
// failed → initializing on a later Initialize call; any → pending on Close.
type Lifecycle struct {
	cfg LifecycleConfig

	mu      sync.Mutex
	status  InitStatus
	initErr error
	store   ContentStorer
}

// NewLifecycle creates a Lifecycle in the pending state.
func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.MinBooks <= 0 {
		cfg.MinBooks = ExpectedBooksCount
	}
	if cfg.MinVerses <= 0 {
		cfg.MinVerses = ExpectedVersesMin
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Lifecycle{cfg: cfg, status: StatusPending}
}

// Status returns the current lifecycle state.
func (l *Lifecycle) Status() InitStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// InitError returns the error that moved the lifecycle to failed, or nil.
func (l *Lifecycle) InitError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initErr
}

// Store returns the open content store and whether it may be queried.
// Only a ready lifecycle exposes its store.
func (l *Lifecycle) Store() (ContentStorer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusReady || l.store == nil {
		return nil, false
	}
	return l.store, true
}

// Initialize runs setup and reports success. Ready and web_fallback are
// both success outcomes. Calling Initialize while another caller is
// initializing polls until that attempt resolves and adopts its outcome;
// no second setup starts, no matter how many callers overlap. Calling it
// on a failed lifecycle retries setup. Errors never propagate: they are
// captured and readable via InitError.
func (l *Lifecycle) Initialize(ctx context.Context) bool {
	waited := false
	for {
		l.mu.Lock()
		switch l.status {
		case StatusReady, StatusWebFallback:
			l.mu.Unlock()
			return true

		case StatusInitializing:
			// Another caller owns setup. Wait and re-read; waiters are
			// not woken in FIFO order, they all just observe the final
			// status.
			waited = true
			l.mu.Unlock()
			select {
			case <-ctx.Done():
				return false
			case <-time.After(l.cfg.PollInterval):
			}

		case StatusPending, StatusFailed:
			if l.status == StatusFailed && waited {
				// The setup this caller waited on resolved to failed.
				// Every waiter adopts that outcome; retrying from
				// failed is reserved for a fresh Initialize call.
				l.mu.Unlock()
				return false
			}
			l.status = StatusInitializing
			l.initErr = nil
			l.mu.Unlock()

			st, webFallback, err := l.setup(ctx)

			l.mu.Lock()
			if l.status != StatusInitializing {
				// Closed while setup was in flight. Drop the result.
				l.mu.Unlock()
				if st != nil {
					st.Close()
				}
				return false
			}
			switch {
			case err != nil:
				l.status = StatusFailed
				l.initErr = err
				l.cfg.Logger.Error("store initialization failed", "error", err)
			case webFallback:
				l.status = StatusWebFallback
				l.cfg.Logger.Info("no embedded storage, using web fallback")
			default:
				l.status = StatusReady
				l.store = st
				l.cfg.Logger.Info("store initialized")
			}
			l.mu.Unlock()
			return err == nil
		}
	}
}

// Close tears the lifecycle down to pending. The next Initialize call
// starts setup from scratch.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.store != nil {
		err = l.store.Close()
		l.store = nil
	}
	l.status = StatusPending
	l.initErr = nil
	return err
}

// setup is the copy → open → validate sequence. One recovery attempt
// (force reseed + reopen) runs before giving up on a failed validation.
func (l *Lifecycle) setup(ctx context.Context) (st ContentStorer, webFallback bool, err error) {
	if l.cfg.Opener == nil {
		return nil, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	if l.cfg.Seeder != nil {
		if err := l.cfg.Seeder.EnsureSeed(); err != nil {
			return nil, false, fmt.Errorf("seed: %w", err)
		}
	}

	st, err = l.cfg.Opener()
	if err != nil {
		return nil, false, fmt.Errorf("open store: %w", err)
	}

	if err := l.validate(ctx, st); err != nil {
		st.Close()
		if l.cfg.Seeder == nil {
			return nil, false, err
		}

		l.cfg.Logger.Warn("store validation failed, attempting recovery", "error", err)
		if rerr := l.cfg.Seeder.ForceReseed(); rerr != nil {
			return nil, false, fmt.Errorf("recovery reseed: %w", rerr)
		}
		st, err = l.cfg.Opener()
		if err != nil {
			return nil, false, fmt.Errorf("reopen store: %w", err)
		}
		if err := l.validate(ctx, st); err != nil {
			st.Close()
			return nil, false, fmt.Errorf("validation failed after recovery attempt: %w", err)
		}
	}

	return st, false, nil
}

func (l *Lifecycle) validate(ctx context.Context, st ContentStorer) error {
	books, err := st.CountBooks(ctx)
	if err != nil {
		return fmt.Errorf("count books: %w", err)
	}
	verses, err := st.CountVerses(ctx)
	if err != nil {
		return fmt.Errorf("count verses: %w", err)
	}
	l.cfg.Logger.Info("store validation", "books", books, "verses", verses)

	if books == 0 || verses == 0 {
		return errors.New("store is empty")
	}
	if books < l.cfg.MinBooks {
		return fmt.Errorf("expected %d books, found %d", l.cfg.MinBooks, books)
	}
	if verses < l.cfg.MinVerses {
		return fmt.Errorf("expected %d+ verses, found %d", l.cfg.MinVerses, verses)
	}
	return nil
}
