package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter answers whether a keyed caller may proceed.
type Limiter interface {
	Allow(key string) bool
}

// Unlimited never throttles. Useful in tests.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerKey keeps one token bucket per key and evicts idle buckets.
type PerKey struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

// NewPerKey builds a per-key limiter allowing perMinute requests with
// the given burst.
func NewPerKey(perMinute, burst int) *PerKey {
	l := &PerKey{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
	go l.evictLoop()
	return l
}

func (l *PerKey) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()
	return b.limiter.Allow()
}

func (l *PerKey) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
