package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testConfig() Config {
	return Config{
		GlobalRate:      rate.Every(time.Hour),
		GlobalBurst:     10,
		PerIPRate:       rate.Every(time.Hour),
		PerIPBurst:      1,
		CleanupInterval: time.Hour,
	}
}

func TestPerIPLimit(t *testing.T) {
	l := New(testConfig())

	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"), "second trigger from same IP is throttled")
	require.True(t, l.Allow("10.0.0.2"), "other IPs are unaffected")
}

func TestGlobalLimit(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalBurst = 2
	l := New(cfg)

	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.2"))
	require.False(t, l.Allow("10.0.0.3"), "global bucket exhausted")
}

func TestAllowStripsPort(t *testing.T) {
	l := New(testConfig())

	require.True(t, l.Allow("10.0.0.1:54321"))
	require.False(t, l.Allow("10.0.0.1:9999"), "port does not create a fresh bucket")
}

func TestCleanupDropsIdleLimiters(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = time.Millisecond
	l := New(cfg)

	l.Allow("10.0.0.1")
	time.Sleep(5 * time.Millisecond)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	_, stale := l.perIP["10.0.0.1"]
	l.mu.Unlock()
	require.False(t, stale, "idle limiter evicted")
}
