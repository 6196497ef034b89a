package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// UserRateLimiter keeps one token bucket per user for mutating timer
// endpoints. Entries idle longer than an hour are dropped on sweep.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &UserRateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
}

func (l *UserRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.limiters[key]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	if len(l.limiters) > 10000 {
		l.sweepLocked()
	}

	entry := &userLimiter{
		limiter:  rate.NewLimiter(l.limit, l.burst),
		lastSeen: time.Now(),
	}
	l.limiters[key] = entry
	return entry.limiter
}

func (l *UserRateLimiter) sweepLocked() {
	cutoff := time.Now().Add(-time.Hour)
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// Middleware rejects requests with 429 once the per-user bucket is empty.
// Runs after AuthMiddleware; unauthenticated requests fall back to client IP.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if user, ok := CurrentUser(c); ok {
			key = user.UserID
		}
		if !l.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
