package ratelimit

import (
	"sync"
	"time"
)

// bucket is one token bucket. Tokens refill continuously at refillRate per
// second up to capacity.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter tracks a token bucket per key. Keys are client IPs for the auth
// endpoints; inactive buckets are dropped after ttl.
type Limiter struct {
	capacity   int
	refillRate float64
	ttl        time.Duration

	buckets map[string]*bucket
	mu      sync.Mutex
}

// NewLimiter creates a keyed token-bucket limiter.
// capacity is the burst size, refillRate the sustained requests per second.
func NewLimiter(capacity int, refillRate float64, ttl time.Duration) *Limiter {
	l := &Limiter{
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		buckets:    make(map[string]*bucket),
	}
	if ttl > 0 {
		go l.evictLoop()
	}
	return l
}

// Allow reports whether a request for key may proceed, consuming one token
// when it does.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.capacity), lastRefill: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * l.refillRate
	if b.tokens > float64(l.capacity) {
		b.tokens = float64(l.capacity)
	}
	b.lastRefill = now

	if b.tokens < 1.0 {
		return false
	}
	b.tokens -= 1.0
	return true
}

// Reset restores the key's bucket to full capacity
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, exists := l.buckets[key]; exists {
		b.tokens = float64(l.capacity)
		b.lastRefill = time.Now()
	}
}

// ActiveBuckets returns the number of tracked keys
func (l *Limiter) ActiveBuckets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, b := range l.buckets {
			if now.Sub(b.lastRefill) > l.ttl {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
