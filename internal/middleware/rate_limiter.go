package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiter limits requests per client over a fixed period
type RateLimiter struct {
	limiter *limiter.Limiter
	name    string
	logger  *zap.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per period.
// Counters live in Redis when a client is given so limits hold across
// replicas; otherwise they are kept in process memory.
func NewRateLimiter(name string, limit int64, period time.Duration, client *redis.Client, logger *zap.Logger) (*RateLimiter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rate := limiter.Rate{Period: period, Limit: limit}
	opts := limiter.StoreOptions{
		Prefix:          "chem:ratelimit:" + name,
		MaxRetry:        3,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}

	var store limiter.Store
	if client != nil {
		s, err := sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return &RateLimiter{limiter: limiter.New(store, rate), name: name, logger: logger}, nil
}

// RateLimitMiddleware rejects clients that exceeded their quota.
// Store failures let the request through.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		lctx, err := rl.limiter.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			rl.logger.Warn("rate limiter unavailable", zap.String("limiter", rl.name), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := time.Until(time.Unix(lctx.Reset, 0))
			if retryAfter < 0 {
				retryAfter = 0
			}
			RespondErrorWithRetry(c, http.StatusTooManyRequests, ErrCodeRateLimited,
				"Too many requests, please try again later", int(retryAfter.Milliseconds()))
			return
		}
		c.Next()
	}
}
