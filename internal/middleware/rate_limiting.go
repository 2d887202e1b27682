package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dkoleva/inkwell/internal/telemetry/metrics"
	"github.com/dkoleva/inkwell/pkg"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"
)

// RequestRateLimiter is satisfied by redis_rate.Limiter and by the
// in-process MemoryRateLimiter used when redis is off.
type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit limits requests per client IP on the wrapped routes.
func RateLimit(
	rateLimiter RequestRateLimiter,
	routerName string,
	allowedPerMin int,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP, err := pkg.ReadUserIP(r)
			if err != nil {
				clientIP = "unknown"
			}

			limiterKey := fmt.Sprintf("%s||%s", routerName, clientIP)
			res, err := rateLimiter.Allow(r.Context(), limiterKey, redis_rate.PerMinute(allowedPerMin))
			if err != nil {
				// let the request through, better than killing traffic on limiter hiccups
				log.Errorf("rate limiter [%s]: %s", routerName, err)
				next.ServeHTTP(w, r)
				return
			}

			if res.Allowed <= 0 {
				log.Warnf("rate limit hit [%s] for [%s], retry after %s", routerName, clientIP, res.RetryAfter)
				metricsManager.CounterRateLimitedRequests.Inc()
				http.Error(w, "rate limit reached", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
