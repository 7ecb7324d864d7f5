// Package ratelimit guards expensive operations, in particular refresh
// triggers, with token buckets. HTTP request throttling is handled
// separately by the router middleware.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nacex",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type"},
)

// Config holds limiter settings.
type Config struct {
	// Global limit across all callers.
	GlobalRate  rate.Limit
	GlobalBurst int

	// Per-IP limit.
	PerIPRate  rate.Limit
	PerIPBurst int

	// CleanupInterval bounds the per-IP limiter map.
	CleanupInterval time.Duration
}

// DefaultConfig limits refresh triggers to one per 30s globally with a
// small burst, and one per minute per caller.
func DefaultConfig() Config {
	return Config{
		GlobalRate:  rate.Every(30 * time.Second),
		GlobalBurst: 2,
		PerIPRate:   rate.Every(time.Minute),
		PerIPBurst:  1,

		CleanupInterval: 10 * time.Minute,
	}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a global and a per-IP token bucket.
type Limiter struct {
	config Config

	global *rate.Limiter
	perIP  map[string]*ipLimiter
	mu     sync.Mutex

	lastCleanup time.Time
}

func New(config Config) *Limiter {
	return &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perIP:       make(map[string]*ipLimiter),
		lastCleanup: time.Now(),
	}
}

// Allow reports whether a trigger from clientIP may proceed now.
func (l *Limiter) Allow(clientIP string) bool {
	if !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("global").Inc()
		return false
	}

	if !l.ipLimiter(clientIP).Allow() {
		rateLimitExceeded.WithLabelValues("per_ip").Inc()
		return false
	}
	return true
}

func (l *Limiter) ipLimiter(clientIP string) *rate.Limiter {
	// Strip port when a full addr is passed.
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastCleanup) > l.config.CleanupInterval {
		for ip, il := range l.perIP {
			if now.Sub(il.lastSeen) > l.config.CleanupInterval {
				delete(l.perIP, ip)
			}
		}
		l.lastCleanup = now
	}

	il, ok := l.perIP[clientIP]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)}
		l.perIP[clientIP] = il
	}
	il.lastSeen = now
	return il.limiter
}
