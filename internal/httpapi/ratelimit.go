package httpapi

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitWindow is the sliding counter window.
const rateLimitWindow = time.Minute

// RateLimiter throttles per-user request rates with a Redis counter: INCR
// plus EXPIRE in one pipeline, 429 once the window's count passes the limit.
// Redis trouble fails open.
type RateLimiter struct {
	rdb   *redis.Client
	limit int
	log   *zap.Logger
}

// NewRateLimiter allows limit requests per user per minute.
func NewRateLimiter(rdb *redis.Client, limit int, log *zap.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, log: log}
}

// Middleware wraps next with the per-user limit. Requests without an
// x-user-id header pass through; the handler's own auth rejects them.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("x-user-id")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		pipe := l.rdb.TxPipeline()
		incr := pipe.Incr(r.Context(), "ratelimit:user:"+userID)
		pipe.Expire(r.Context(), "ratelimit:user:"+userID, rateLimitWindow)
		if _, err := pipe.Exec(r.Context()); err != nil {
			l.log.Error("rate limit check failed",
				zap.String("user_id", userID),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if count := incr.Val(); count > int64(l.limit) {
			l.log.Warn("rate limit exceeded",
				zap.String("user_id", userID),
				zap.Int64("count", count))
			jsonError(w, "rate limit exceeded, slow down", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
