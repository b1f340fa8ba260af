package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagata/gata/pkg/kv"
	"github.com/datagata/gata/pkg/kv/kvtest"
)

func TestStoreContract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return New() })
}

func TestValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, kv.Key{"k"}, buf, 0))
	buf[0] = 'z'

	got, ok, err := s.Get(ctx, kv.Key{"k"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, kv.Key{"a"}, []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, kv.Key{"b"}, []byte("2"), 0))
	now = now.Add(time.Second)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
