package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("class:01.11", []byte(`{"code":"01.11"}`), time.Minute)

	payload, found := c.Get("class:01.11")
	require.True(t, found)
	require.JSONEq(t, `{"code":"01.11"}`, string(payload))

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Sets)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(0)

	_, found := c.Get("absent")
	require.False(t, found)
	require.Equal(t, int64(1), c.Stats().Misses)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", []byte("v"), -time.Second)
	_, found := c.Get("k")
	require.False(t, found, "expired entries are not returned")
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Delete("a")
	_, found := c.Get("a")
	require.False(t, found)

	c.Clear()
	require.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCacheJanitorEvicts(t *testing.T) {
	c := NewMemoryCache(0).(*memoryCache)
	defer c.Close() //nolint:errcheck

	c.Set("gone", []byte("x"), -time.Second)
	c.Set("kept", []byte("y"), time.Minute)

	evicted := c.deleteExpired()
	require.Equal(t, 1, evicted)
	require.Equal(t, int64(1), c.Stats().Evictions)
	require.Equal(t, 1, c.Stats().CurrentSize)
}

func TestMemoryCacheCloseStopsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(10 * time.Millisecond).(*memoryCache)
	c.Set("k", []byte("v"), -time.Second)

	require.Eventually(t, func() bool {
		return c.Stats().CurrentSize == 0
	}, time.Second, 5*time.Millisecond, "janitor evicts expired entries")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "idempotent")
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%5)
				c.Set(key, []byte("payload"), time.Minute)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1000), c.Stats().Sets)
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()

	c.Set("k", []byte("v"), time.Minute)
	_, found := c.Get("k")
	require.False(t, found)
	require.Equal(t, Stats{}, c.Stats())
	require.NoError(t, c.Close())
}
