package middleware

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter allows at most limit requests per client IP in any sliding
// window of the given length.
type IPRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		requests: map[string][]time.Time{},
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request from ip and reports whether it fits the window.
func (rl *IPRateLimiter) Allow(ip string) bool {
	ok, _ := rl.take(ip)
	return ok
}

// take returns, for a rejected request, how long until the oldest hit leaves
// the window.
func (rl *IPRateLimiter) take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	at := rl.now()
	hits := rl.recent(rl.requests[ip], at)
	if len(hits) >= rl.limit {
		rl.requests[ip] = hits
		return false, hits[0].Add(rl.window).Sub(at)
	}
	rl.requests[ip] = append(hits, at)
	return true, 0
}

// recent drops the hits at or before the start of the window ending at at.
// hits are kept in arrival order.
func (rl *IPRateLimiter) recent(hits []time.Time, at time.Time) []time.Time {
	cutoff := at.Add(-rl.window)
	first := sort.Search(len(hits), func(i int) bool { return hits[i].After(cutoff) })
	return hits[first:]
}

// Prune forgets clients with no request inside the window.
func (rl *IPRateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	at := rl.now()
	for ip, hits := range rl.requests {
		if len(rl.recent(hits, at)) == 0 {
			delete(rl.requests, ip)
		}
	}
}

// RateLimit rejects clients over the limit with 429 and a Retry-After header.
func RateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.take(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		c.Next()
	}
}
