package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
}

// RateLimiter throttles the endpoints that kick off scans or send mail.
// Each command route has its own bucket, so a run of resends cannot starve
// the check triggers.
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.buckets[key]
	if !ok {
		l = rate.NewLimiter(rl.config.Rate, rl.config.Burst)
		rl.buckets[key] = l
	}
	return l
}

// retryAfter is the whole seconds until one token refills, or 0 when that
// is unknowable.
func (rl *RateLimiter) retryAfter() int {
	r := rl.config.Rate
	if r <= 0 || r == rate.Inf {
		return 0
	}
	// rounded to the millisecond first so 1/(1/60) does not become 61
	return int(math.Ceil(math.Round(1000/float64(r)) / 1000))
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.bucket(c.Request.Method + " " + route(c)).Allow() {
			c.Next()
			return
		}
		if s := rl.retryAfter(); s > 0 {
			c.Header("Retry-After", strconv.Itoa(s))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Code:    http.StatusTooManyRequests,
			Message: "rate limit exceeded",
			TraceID: c.GetString(ContextRequestID),
		})
	}
}
