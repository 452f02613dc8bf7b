package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	t.Run("increment keeps the first window", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		defer store.Close()

		reset := time.Now().Add(time.Minute)
		count, got := store.Increment("k", reset)
		assert.Equal(t, 1, count)
		assert.Equal(t, reset, got)

		count, got = store.Increment("k", reset.Add(time.Hour))
		assert.Equal(t, 2, count)
		assert.Equal(t, reset, got)

		c, r, ok := store.get("k")
		assert.True(t, ok)
		assert.Equal(t, 2, c)
		assert.Equal(t, reset, r)
	})

	t.Run("expired window starts over", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		defer store.Close()

		now := time.Now()
		store.now = func() time.Time { return now }
		store.Increment("k", now.Add(time.Second))
		store.Increment("k", now.Add(time.Second))

		now = now.Add(2 * time.Second)
		_, _, ok := store.get("k")
		assert.False(t, ok)

		count, _ := store.Increment("k", now.Add(time.Minute))
		assert.Equal(t, 1, count)
	})

	t.Run("sweep drops expired keys", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		defer store.Close()

		store.Increment("old", time.Now().Add(-time.Second))
		store.Increment("new", time.Now().Add(time.Minute))
		store.sweep()

		assert.Equal(t, 1, store.size())
	})

	t.Run("concurrent increments", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		defer store.Close()

		reset := time.Now().Add(time.Minute)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Increment("k", reset)
			}()
		}
		wg.Wait()

		count, _, _ := store.get("k")
		assert.Equal(t, 50, count)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		store := NewMemoryStore(time.Millisecond)
		assert.NotPanics(t, func() {
			store.Close()
			store.Close()
		})
	})
}
