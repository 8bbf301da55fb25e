package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-platform/internal/handler"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// IdleTTL drops a client's bucket after this long without requests.
	IdleTTL time.Duration
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	cfg     RateLimiterConfig
	clients *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		cfg:     config,
		clients: cache.New(config.IdleTTL, 2*config.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := rl.clients.Get(key); ok {
		rl.clients.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)
	// a concurrent first request may win the race; either limiter is fine
	if err := rl.clients.Add(key, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.clients.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
