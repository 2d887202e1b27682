package middleware

import (
	"context"
	"sync"

	"github.com/go-redis/redis_rate/v9"
	"golang.org/x/time/rate"
)

var _ RequestRateLimiter = (*MemoryRateLimiter)(nil)

// MemoryRateLimiter keeps a token bucket per key in process memory.
// Single-instance deployments without redis use this one.
type MemoryRateLimiter struct {
	mutex    sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

func (mrl *MemoryRateLimiter) Allow(
	_ context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	mrl.mutex.Lock()
	limiter, ok := mrl.limiters[key]
	if !ok {
		perSec := float64(limit.Rate) / limit.Period.Seconds()
		limiter = rate.NewLimiter(rate.Limit(perSec), limit.Burst)
		mrl.limiters[key] = limiter
	}
	mrl.mutex.Unlock()

	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return &redis_rate.Result{
			Limit:      limit,
			Allowed:    0,
			Remaining:  0,
			RetryAfter: delay,
			ResetAfter: delay,
		}, nil
	}

	return &redis_rate.Result{
		Limit:     limit,
		Allowed:   1,
		Remaining: int(limiter.Tokens()),
	}, nil
}
