package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	mu     sync.Mutex
	rate   rate.Limit
	burst  int
	bucket map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing r events per second with the
// given burst for each client.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:   r,
		burst:  burst,
		bucket: make(map[string]*clientBucket),
	}
}

// CheckRateLimit consumes one token for key.
func (rl *RateLimiter) CheckRateLimit(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.bucket[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.bucket[key] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return &RateLimitError{
			Type:       "request",
			Limit:      float64(rl.rate),
			Burst:      rl.burst,
			RetryAfter: retryAfter(rl.rate),
		}
	}
	return nil
}

// Prune forgets clients idle for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	n := 0
	for k, b := range rl.bucket {
		if b.lastSeen.Before(cutoff) {
			delete(rl.bucket, k)
			n++
		}
	}
	return n
}

// PruneEvery calls Prune on a ticker until ctx is done.
func (rl *RateLimiter) PruneEvery(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Prune(idle); n > 0 {
				slog.Debug("Pruned idle rate limit clients", "count", n)
			}
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.bucket)
}

// retryAfter is the time for one token to refill.
func retryAfter(r rate.Limit) time.Duration {
	if r == rate.Inf || r <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(float64(time.Second) / float64(r)))
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "request" or "message"
	Limit      float64       // events per second
	Burst      int           // bucket size
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %g/s, burst: %d, retry after: %v)",
		e.Type, e.Limit, e.Burst, e.RetryAfter)
}
