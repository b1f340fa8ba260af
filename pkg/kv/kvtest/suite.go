// Package kvtest holds a behavioural test suite shared by every kv.Store
// implementation.
package kvtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagata/gata/pkg/kv"
)

// Option adjusts how Run drives a store.
type Option func(*suite)

type suite struct {
	advance func(time.Duration)
}

// WithAdvance replaces the real sleep used to let TTLs lapse, for backends
// with a controllable clock.
func WithAdvance(advance func(time.Duration)) Option {
	return func(s *suite) { s.advance = advance }
}

// Run exercises newStore against the kv.Store contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store, opts ...Option) {
	cfg := suite{advance: time.Sleep}
	for _, o := range opts {
		o(&cfg)
	}

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(context.Background(), kv.Key{"nope"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		key := kv.Key{"query_cache", "abc"}

		require.NoError(t, s.Set(ctx, key, []byte(`{"v":1}`), 0))
		got, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"v":1}`, string(got))

		require.NoError(t, s.Delete(ctx, key))
		_, ok, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting again is fine.
		require.NoError(t, s.Delete(ctx, key))
	})

	t.Run("ListPrefixAndOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Set(ctx, kv.Key{"approved_queries", "u1", "sales", "k2"}, []byte("2"), 0))
		require.NoError(t, s.Set(ctx, kv.Key{"approved_queries", "u1", "sales", "k1"}, []byte("1"), 0))
		require.NoError(t, s.Set(ctx, kv.Key{"approved_queries", "u1", "salesx", "k3"}, []byte("3"), 0))
		require.NoError(t, s.Set(ctx, kv.Key{"approved_queries", "u2", "sales", "k4"}, []byte("4"), 0))
		require.NoError(t, s.Set(ctx, kv.Key{"query_cache", "x"}, []byte("5"), 0))

		entries, err := s.List(ctx, kv.Key{"approved_queries", "u1", "sales"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "2", string(entries[0].Value))
		assert.Equal(t, "1", string(entries[1].Value))
		assert.Equal(t, kv.Key{"approved_queries", "u1", "sales", "k2"}, entries[0].Key)

		all, err := s.List(ctx, kv.Key{"approved_queries"})
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("OverwriteKeepsPosition", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Set(ctx, kv.Key{"p", fmt.Sprint(i)}, []byte("old"), 0))
		}
		require.NoError(t, s.Set(ctx, kv.Key{"p", "0"}, []byte("new"), 0))

		entries, err := s.List(ctx, kv.Key{"p"})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, kv.Key{"p", "0"}, entries[0].Key)
		assert.Equal(t, "new", string(entries[0].Value))
	})

	t.Run("KeyPartsWithSeparators", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		key := kv.Key{"approved_queries", "a/b", "t*[1]", "t*[1]:what is 50%?"}
		require.NoError(t, s.Set(ctx, key, []byte("x"), 0))

		entries, err := s.List(ctx, kv.Key{"approved_queries", "a/b"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, key, entries[0].Key)

		entries, err = s.List(ctx, kv.Key{"approved_queries", "a"})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Set(ctx, kv.Key{"t", "short"}, []byte("s"), 50*time.Millisecond))
		require.NoError(t, s.Set(ctx, kv.Key{"t", "long"}, []byte("l"), time.Hour))

		_, ok, err := s.Get(ctx, kv.Key{"t", "short"})
		require.NoError(t, err)
		assert.True(t, ok)

		cfg.advance(120 * time.Millisecond)

		_, ok, err = s.Get(ctx, kv.Key{"t", "short"})
		require.NoError(t, err)
		assert.False(t, ok)

		entries, err := s.List(ctx, kv.Key{"t"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "l", string(entries[0].Value))
		assert.False(t, entries[0].ExpiresAt.IsZero())
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, kv.Key{"c", fmt.Sprint(i)}, []byte("v"), 0))
			}(i)
		}
		wg.Wait()

		entries, err := s.List(ctx, kv.Key{"c"})
		require.NoError(t, err)
		assert.Len(t, entries, 20)
	})
}
