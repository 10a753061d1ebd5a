package routes

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"safespace/helpers"
)

// RateLimitOptions configures the per-client token bucket.
type RateLimitOptions struct {
	RequestsPerSecond float64
	Burst             int
	// TrustProxy takes the client IP from the first X-Forwarded-For entry.
	TrustProxy bool
	// IdleTTL drops buckets of clients idle for longer. Zero means
	// DefaultIdleTTL.
	IdleTTL time.Duration
}

// DefaultIdleTTL is how long an idle client's bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than the idle TTL are swept on a later request, so the map holds at most
// the clients seen within roughly two TTLs.
type RateLimiter struct {
	limiters  *xsync.MapOf[string, *clientBucket]
	opts      RateLimitOptions
	idleTTL   time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
	logger    *zap.Logger
}

// NewRateLimiter creates a new rate limiting middleware.
func NewRateLimiter(opts RateLimitOptions, logger *zap.Logger) *RateLimiter {
	m := &RateLimiter{
		limiters: xsync.NewMapOf[string, *clientBucket](),
		opts:     opts,
		idleTTL:  idleTTL(opts),
		now:      time.Now,
		logger:   logger.Named("ratelimit"),
	}
	m.lastSweep.Store(m.now().UnixNano())
	return m
}

// idleTTL never undercuts the time a drained bucket needs to refill, so a
// dropped bucket would have been full again anyway.
func idleTTL(opts RateLimitOptions) time.Duration {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if opts.RequestsPerSecond > 0 {
		refill := time.Duration(float64(max(opts.Burst, 1)) / opts.RequestsPerSecond * float64(time.Second))
		ttl = max(ttl, refill)
	}
	return ttl
}

// Middleware rejects requests over the client's budget with 429. A
// non-positive rate disables limiting.
func (m *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.opts.RequestsPerSecond <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := m.clientIP(r)
		if !m.getLimiter(ip).Allow() {
			m.logger.Debug("Rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
			helpers.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimiter) getLimiter(ip string) *rate.Limiter {
	now := m.now().UnixNano()
	m.sweep(now)

	bucket, _ := m.limiters.LoadOrCompute(ip, func() *clientBucket {
		return &clientBucket{limiter: rate.NewLimiter(rate.Limit(m.opts.RequestsPerSecond), max(m.opts.Burst, 1))}
	})
	bucket.lastSeen.Store(now)
	return bucket.limiter
}

// sweep drops idle buckets at most once per idle TTL.
func (m *RateLimiter) sweep(now int64) {
	last := m.lastSweep.Load()
	ttl := m.idleTTL.Nanoseconds()
	if now-last < ttl || !m.lastSweep.CompareAndSwap(last, now) {
		return
	}

	dropped := 0
	m.limiters.Range(func(ip string, _ *clientBucket) bool {
		m.limiters.Compute(ip, func(bucket *clientBucket, loaded bool) (*clientBucket, bool) {
			idle := !loaded || now-bucket.lastSeen.Load() >= ttl
			if idle && loaded {
				dropped++
			}
			return bucket, idle
		})
		return true
	})
	if dropped > 0 {
		m.logger.Debug("Dropped idle rate limit buckets", zap.Int("count", dropped), zap.Int("remaining", m.clients()))
	}
}

// clients is the number of tracked buckets.
func (m *RateLimiter) clients() int {
	return m.limiters.Size()
}

func (m *RateLimiter) clientIP(r *http.Request) string {
	if m.opts.TrustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
