package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := t.Context()

	t.Run("first submission of a key is new", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "sale-req-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("a resubmitted key is a duplicate", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "sale-req-2", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "sale-req-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew, "a key inside its TTL must read as already processed")
	})

	t.Run("a lapsed key can be submitted again", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "sale-req-3", 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		isNew, err := store.MarkProcessed(ctx, "sale-req-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew, "an expired key behaves like one never seen")
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := t.Context()

	processed, err := store.IsProcessed(ctx, "never-submitted")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "live-key", time.Hour)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "live-key")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = store.MarkProcessed(ctx, "lapsing-key", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	processed, err = store.IsProcessed(ctx, "lapsing-key")
	require.NoError(t, err)
	assert.False(t, processed, "an expired entry must not read as processed before the sweep removes it")
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := t.Context()

	store.MarkProcessed(ctx, "short-1", 10*time.Millisecond)
	store.MarkProcessed(ctx, "short-2", 10*time.Millisecond)
	store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 3, store.Size())

	// Re-marking a live key must not grow the store
	store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 3, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.sweep()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

// A burst of identical submissions, as when a client retries a flaky
// connection, must win the key exactly once.
func TestInMemoryIdempotencyStore_ConcurrentSubmissions(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := t.Context()

	const workers = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, "retried-sale", time.Hour)
			require.NoError(t, err)
			if isNew {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one submission may be treated as new")
}

// Distinct keys never interfere, concurrent or not.
func TestInMemoryIdempotencyStore_DistinctKeys(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := t.Context()

	for i := 0; i < 10; i++ {
		isNew, err := store.MarkProcessed(ctx, fmt.Sprintf("sale-%d", i), time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	}
	assert.Equal(t, 10, store.Size())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "Close is idempotent")
}
