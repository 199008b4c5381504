package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a token-bucket limit per client key (usually the
// remote IP of an upload request).
//
// Each key gets its own bucket, created on first use. Buckets that have not
// been touched for idleTTL are dropped by Prune, so a long-running server
// does not accumulate one limiter per client ever seen.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a RateLimiter allowing requestsPerSecond sustained and burst
// immediate requests per key.
//
// Special cases:
//   - requestsPerSecond = 0: No rate limiting (every call is allowed)
//   - burst = 0: burst defaults to requestsPerSecond
func New(requestsPerSecond, burst uint) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond == 0 {
		limit = rate.Inf
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limit:   limit,
		burst:   int(burst),
		buckets: make(map[string]*bucket),
	}
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit == rate.Inf
}

func (r *RateLimiter) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow reports whether one request for key may proceed now, consuming a
// token if so.
func (r *RateLimiter) Allow(key string) bool {
	if r.Unlimited() {
		return true
	}
	return r.get(key).Allow()
}

// Reserve returns how long key must wait before its next request would be
// allowed, without consuming a token. Zero means a request is allowed now.
func (r *RateLimiter) Reserve(key string) time.Duration {
	if r.Unlimited() {
		return 0
	}
	res := r.get(key).Reserve()
	delay := res.Delay()
	res.Cancel()
	return delay
}

// Wait blocks until a token for key is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	if r.Unlimited() {
		return ctx.Err()
	}
	return r.get(key).Wait(ctx)
}

// SetLimit changes the sustained rate for existing and future buckets.
func (r *RateLimiter) SetLimit(requestsPerSecond uint) {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond == 0 {
		limit = rate.Inf
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
	for _, b := range r.buckets {
		b.limiter.SetLimit(limit)
	}
}

// Prune drops buckets idle for longer than idleTTL and returns how many were
// removed.
func (r *RateLimiter) Prune(idleTTL time.Duration) int {
	cutoff := time.Now().Add(-idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
