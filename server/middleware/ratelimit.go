package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/metrics"
	"golang.org/x/time/rate"
)

// minVisitorTTL bounds how often idle clients are swept.
const minVisitorTTL = time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP with a token bucket. Clients
// idle long enough for their bucket to refill are forgotten.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	metrics *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter creates a limiter. m may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	ttl := cfg.Every * time.Duration(cfg.Burst)
	if ttl < minVisitorTTL {
		ttl = minVisitorTTL
	}
	return &RateLimiter{
		cfg:      cfg,
		metrics:  m,
		ttl:      ttl,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *RateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweep(now)
	}

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(l.cfg.Every), l.cfg.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep drops visitors idle for at least ttl. Their buckets are full again,
// so a fresh limiter behaves the same. Callers hold mu.
func (l *RateLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.ttl {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}

// Handler rejects requests over the limit with a 429 RateLimitError. It is a
// pass-through when the limiter is disabled.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	if !l.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !l.get(ip).Allow() {
			if l.metrics != nil {
				l.metrics.RateLimitHits.WithLabelValues(r.URL.Path).Inc()
			}
			errors.WriteError(w, errors.NewRateLimitError(
				GetRequestID(r.Context()),
				l.cfg.Burst,
				l.cfg.Every.String(),
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Reset forgets every client. Only used for testing.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.visitors = make(map[string]*visitor)
}
