package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	sync.Mutex
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.t = c.t.Add(d)
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("a stored token resolves to exactly the stored location", func(t *testing.T) {
		s, _ := newClockedStore()
		require.NoError(t, s.Put(ctx, "tok", "https://upstream/vod/channels/ch1/files/xyz", DefaultTTL))

		location, ok, err := s.Get(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://upstream/vod/channels/ch1/files/xyz", location)
	})

	t.Run("an unknown token is absent", func(t *testing.T) {
		s, _ := newClockedStore()
		_, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("a session is unreadable once its ttl has elapsed", func(t *testing.T) {
		s, clock := newClockedStore()
		require.NoError(t, s.Put(ctx, "tok", "https://upstream/files/a", time.Minute))

		clock.Advance(59 * time.Second)
		_, ok, _ := s.Get(ctx, "tok")
		assert.True(t, ok)

		clock.Advance(time.Second)
		_, ok, _ = s.Get(ctx, "tok")
		assert.False(t, ok)
	})

	t.Run("sweep removes only expired sessions", func(t *testing.T) {
		s, clock := newClockedStore()
		require.NoError(t, s.Put(ctx, "short", "https://upstream/files/a", time.Minute))
		require.NoError(t, s.Put(ctx, "long", "https://upstream/files/b", time.Hour))

		clock.Advance(2 * time.Minute)
		assert.Equal(t, 1, s.Sweep())
		assert.Equal(t, 1, s.Len())

		_, ok, _ := s.Get(ctx, "long")
		assert.True(t, ok)
	})

	t.Run("concurrent writers and readers of different tokens do not interfere", func(t *testing.T) {
		s := NewMemoryStore()
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				token := fmt.Sprintf("tok-%d", i)
				location := fmt.Sprintf("https://upstream/files/%d", i)
				assert.NoError(t, s.Put(ctx, token, location, DefaultTTL))
				got, ok, err := s.Get(ctx, token)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, location, got)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 64, s.Len())
	})
}

func TestNewToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		tok := NewToken()
		_, dup := seen[tok]
		require.False(t, dup, "token %s minted twice", tok)
		seen[tok] = struct{}{}
	}
}
