package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "test", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	key, err := c.BuildKey(ctx, "tenant:1", "summary", "7")
	require.NoError(t, err)
	require.Equal(t, "test:tenant:1:summary:7:1", key)

	var calls int32
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return payload{Value: "a"}, nil
	}

	var first, second payload
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, "a", first.Value)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestBumpChangesKeysPerNamespace(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	before, err := c.BuildKey(ctx, "tenant:1", "summary")
	require.NoError(t, err)
	other, err := c.BuildKey(ctx, "tenant:2", "summary")
	require.NoError(t, err)

	require.NoError(t, c.Bump(ctx, "tenant:1"))

	after, err := c.BuildKey(ctx, "tenant:1", "summary")
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	otherAfter, err := c.BuildKey(ctx, "tenant:2", "summary")
	require.NoError(t, err)
	require.Equal(t, other, otherAfter)
}

func TestFetchJSONSharesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	release := make(chan struct{})
	var calls int32
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Value: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]payload, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.FetchJSON(ctx, "k", &results[i], loader))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		require.Equal(t, "shared", r.Value)
	}
}

func TestNilClientFallsThroughToLoader(t *testing.T) {
	c := NewVersioned(nil, "test", time.Minute)
	var out payload
	err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return payload{Value: "direct"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "direct", out.Value)
	require.NoError(t, c.Bump(context.Background(), "tenant:1"))
}
