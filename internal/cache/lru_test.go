package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUProviderRoundTrip(t *testing.T) {
	p, err := NewLRUProvider(LRUConfig{Size: 4, TTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, p.Set(ctx, "k", []byte("v"), 0))
	got, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'x'
	again, _ := p.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again)

	require.NoError(t, p.Del(ctx, "k"))
	_, err = p.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLRUProviderHonoursShortTTL(t *testing.T) {
	p, err := NewLRUProvider(LRUConfig{Size: 4, TTL: time.Hour})
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)
	_, err = p.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err := p.SetNX(ctx, "k", []byte("w"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired key must be claimable")
}

func TestLRUProviderSetNXIsExclusive(t *testing.T) {
	p, err := NewLRUProvider(LRUConfig{Size: 16, TTL: time.Minute})
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.SetNX(context.Background(), "incident-1", []byte("run"), time.Minute)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestLRUProviderClose(t *testing.T) {
	p, err := NewLRUProvider(LRUConfig{Size: 1})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Error(t, p.Set(context.Background(), "k", nil, 0))

	_, err = NewLRUProvider(LRUConfig{})
	assert.Error(t, err)
}

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	ok, err := p.SetNX(context.Background(), "k", nil, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = p.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
