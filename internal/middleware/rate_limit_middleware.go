package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "pomodoro/focus/internal/errors"
)

// RateLimit allows each user rps requests per second with the given burst.
// It must run after Auth; unauthenticated requests are keyed by client IP.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if limiter, ok := limiters[key]; ok {
			return limiter
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		limiters[key] = limiter
		return limiter
	}

	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !get(key).Allow() {
			c.Header("Retry-After", "1")
			writeError(c, apperrors.RateLimited())
			return
		}
		c.Next()
	}
}
