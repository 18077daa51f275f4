package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a process-wide token bucket. It holds at most burst tokens
// and regains one every refill interval.
type RateLimiter struct {
	mu     sync.Mutex
	burst  float64
	tokens float64
	refill time.Duration
	last   time.Time
	now    func() time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(burst int, refill time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if refill <= 0 {
		refill = time.Second
	}
	l := &RateLimiter{
		burst:  float64(burst),
		tokens: float64(burst),
		refill: refill,
		now:    time.Now,
	}
	l.last = l.now()
	return l
}

// Allow takes one token. When the bucket is empty it reports how long until
// the next token is available.
func (l *RateLimiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if elapsed := now.Sub(l.last); elapsed > 0 {
		l.tokens = math.Min(l.burst, l.tokens+float64(elapsed)/float64(l.refill))
		l.last = now
	}

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	wait := time.Duration((1 - l.tokens) * float64(l.refill))
	return false, wait
}

// Middleware rejects requests with 429 once the bucket is empty.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow()
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			WriteProblem(w, r, http.StatusTooManyRequests, "Muitas solicitações. Aguarde alguns segundos.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
