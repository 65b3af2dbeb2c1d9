package shopify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Shopify's REST bucket leaks at 2 requests per second with a burst of 40
const (
	defaultRequestsPerSecond = 2
	defaultBurst             = 40
)

// RateLimiter throttles outbound calls per shop. It waits for a token and never
// retries on its own.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	logger   zerolog.Logger
}

// NewRateLimiter creates a limiter with Shopify's default REST bucket
func NewRateLimiter(logger zerolog.Logger) *RateLimiter {
	return NewRateLimiterWithLimit(rate.Limit(defaultRequestsPerSecond), defaultBurst, logger)
}

// NewRateLimiterWithLimit creates a limiter with an explicit per-shop rate
func NewRateLimiterWithLimit(limit rate.Limit, burst int, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		logger:   logger,
	}
}

// Wait blocks until shop may make another request or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, shop string) error {
	limiter := rl.forShop(shop)
	if limiter.Tokens() < 1 {
		rl.logger.Debug().Str("shop", shop).Msg("Waiting for Shopify rate limit")
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) forShop(shop string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.limiters[shop]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[shop] = limiter
	}
	return limiter
}
