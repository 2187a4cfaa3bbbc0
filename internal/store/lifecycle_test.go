package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populatedMemStore builds a MemStore that passes the given thresholds.
func populatedMemStore(books, verses int) *MemStore {
	s := NewMemStore()
	for b := 1; b <= books; b++ {
		s.AddBook(&Book{Name: "Libro", BookNumber: b, Chapters: 1})
	}
	for v := 1; v <= verses; v++ {
		s.AddVerse(&Verse{BookID: 1, BookName: "Libro", Chapter: 1, Verse: v, Text: "texto"})
	}
	return s
}

func TestLifecycle_InitializeReachesReady(t *testing.T) {
	life := NewLifecycle(LifecycleConfig{
		Opener:    func() (ContentStorer, error) { return populatedMemStore(3, 10), nil },
		MinBooks:  3,
		MinVerses: 10,
	})
	t.Cleanup(func() { life.Close() })

	assert.Equal(t, StatusPending, life.Status())
	require.True(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusReady, life.Status())

	st, ok := life.Store()
	require.True(t, ok)
	n, err := st.CountBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLifecycle_ConcurrentInitializeRunsSetupOnce(t *testing.T) {
	var opens atomic.Int32
	life := NewLifecycle(LifecycleConfig{
		Opener: func() (ContentStorer, error) {
			opens.Add(1)
			time.Sleep(20 * time.Millisecond) // hold setup open so callers overlap
			return populatedMemStore(2, 5), nil
		},
		MinBooks:     2,
		MinVerses:    5,
		PollInterval: time.Millisecond,
	})
	t.Cleanup(func() { life.Close() })

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = life.Initialize(context.Background())
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
	assert.Equal(t, int32(1), opens.Load())
}

func TestLifecycle_ConcurrentInitializeFailingSetupRunsOnce(t *testing.T) {
	var opens atomic.Int32
	life := NewLifecycle(LifecycleConfig{
		Opener: func() (ContentStorer, error) {
			opens.Add(1)
			time.Sleep(20 * time.Millisecond) // hold setup open so callers overlap
			return nil, errors.New("disk full")
		},
		PollInterval: time.Millisecond,
	})
	t.Cleanup(func() { life.Close() })

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = life.Initialize(context.Background())
		}(i)
	}
	wg.Wait()

	// Waiters adopt the owning setup's failure instead of each rerunning
	// the copy-and-open sequence against a broken device.
	for i, ok := range results {
		assert.False(t, ok, "caller %d", i)
	}
	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, StatusFailed, life.Status())
	assert.Contains(t, life.InitError().Error(), "disk full")

	// A fresh call on the settled failed lifecycle does retry.
	life.Initialize(context.Background())
	assert.Equal(t, int32(2), opens.Load())
}

func TestLifecycle_NilOpenerIsWebFallback(t *testing.T) {
	life := NewLifecycle(LifecycleConfig{})
	t.Cleanup(func() { life.Close() })

	require.True(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusWebFallback, life.Status())

	_, ok := life.Store()
	assert.False(t, ok)
}

func TestLifecycle_EmptyStoreFailsValidation(t *testing.T) {
	life := NewLifecycle(LifecycleConfig{
		Opener: func() (ContentStorer, error) { return NewMemStore(), nil },
	})
	t.Cleanup(func() { life.Close() })

	require.False(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusFailed, life.Status())
	require.Error(t, life.InitError())
	assert.Contains(t, life.InitError().Error(), "empty")

	_, ok := life.Store()
	assert.False(t, ok)
}

func TestLifecycle_UndersizedStoreFailsValidation(t *testing.T) {
	life := NewLifecycle(LifecycleConfig{
		Opener:    func() (ContentStorer, error) { return populatedMemStore(2, 100), nil },
		MinBooks:  66,
		MinVerses: 50,
	})
	t.Cleanup(func() { life.Close() })

	require.False(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusFailed, life.Status())
	assert.Contains(t, life.InitError().Error(), "66 books")
}

func TestLifecycle_FailedRetriesSetup(t *testing.T) {
	var attempts atomic.Int32
	life := NewLifecycle(LifecycleConfig{
		Opener: func() (ContentStorer, error) {
			if attempts.Add(1) == 1 {
				return NewMemStore(), nil // empty, fails validation
			}
			return populatedMemStore(2, 5), nil
		},
		MinBooks:  2,
		MinVerses: 5,
	})
	t.Cleanup(func() { life.Close() })

	require.False(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusFailed, life.Status())

	require.True(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusReady, life.Status())
	assert.Nil(t, life.InitError())
}

func TestLifecycle_OpenErrorSurfacesThenRetrySucceeds(t *testing.T) {
	openErr := errors.New("disk full")
	life := NewLifecycle(LifecycleConfig{
		Opener: func() (ContentStorer, error) {
			if openErr != nil {
				return nil, openErr
			}
			return populatedMemStore(2, 5), nil
		},
		MinBooks:  2,
		MinVerses: 5,
	})
	t.Cleanup(func() { life.Close() })

	require.False(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusFailed, life.Status())
	assert.Contains(t, life.InitError().Error(), "disk full")

	// Fault cleared: retrying the failed lifecycle reaches ready.
	openErr = nil
	require.True(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusReady, life.Status())
}

func TestLifecycle_CloseResetsToPending(t *testing.T) {
	life := NewLifecycle(LifecycleConfig{
		Opener:    func() (ContentStorer, error) { return populatedMemStore(2, 5), nil },
		MinBooks:  2,
		MinVerses: 5,
	})

	require.True(t, life.Initialize(context.Background()))
	require.NoError(t, life.Close())
	assert.Equal(t, StatusPending, life.Status())

	_, ok := life.Store()
	assert.False(t, ok)

	// Reinitializes from scratch after Close.
	require.True(t, life.Initialize(context.Background()))
	assert.Equal(t, StatusReady, life.Status())
	life.Close()
}
