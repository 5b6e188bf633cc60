package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// acquirePollInterval is how often a blocked caller re-checks the bucket.
const acquirePollInterval = 100 * time.Millisecond

// rateLimiter is a token bucket sized in requests per minute, shared by
// every classification call so batch runs stay inside the provider's
// limits.
type rateLimiter struct {
	stopCh    chan struct{}
	tokens    int
	capacity  int
	perMinute int
	mu        sync.Mutex
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	rl := &rateLimiter{
		tokens:    requestsPerMinute,
		capacity:  requestsPerMinute,
		perMinute: requestsPerMinute,
		stopCh:    make(chan struct{}),
	}

	go rl.refill()

	return rl
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(acquirePollInterval)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.tokens == 0 {
		return false
	}
	rl.tokens--
	return true
}

// refill returns one token per interval until Close, never growing the
// bucket past its capacity.
func (rl *rateLimiter) refill() {
	ticker := time.NewTicker(time.Minute / time.Duration(rl.perMinute))
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			if rl.tokens < rl.capacity {
				rl.tokens++
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the refill goroutine.
func (rl *rateLimiter) Close() {
	close(rl.stopCh)
}
