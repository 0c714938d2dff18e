package ratelimit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds throttling knobs for the auth endpoints. The limits are per
// client IP; credential and verification-code guessing both hit them.
type Config struct {
	Enabled    bool
	Capacity   int     // max burst per IP
	RefillRate float64 // sustained requests per second per IP
	BucketTTL  time.Duration
}

// DefaultConfig allows a burst of 10 auth requests per IP, refilling at 10
// per minute, with inactive IPs forgotten after an hour.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Capacity:   10,
		RefillRate: 10.0 / 60.0,
		BucketTTL:  time.Hour,
	}
}

// Middleware throttles unauthenticated auth requests per client IP
type Middleware struct {
	config  Config
	limiter *Limiter
}

// NewMiddleware creates the throttling middleware
func NewMiddleware(config Config) *Middleware {
	m := &Middleware{config: config}
	if config.Enabled {
		m.limiter = NewLimiter(config.Capacity, config.RefillRate, config.BucketTTL)
	}
	return m
}

// Handler rejects over-limit requests with 429
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !m.limiter.Allow(ip) {
			slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "Too many requests. Please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the caller's address, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
