package shield

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig is a per-IP token bucket: Burst requests at once, refilled
// at RequestsPerMinute. RequestsPerMinute <= 0 disables the limiter.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter limits requests per client IP. Buckets live in memory; a
// restart resets them.
type RateLimiter struct {
	cfg     RateLimitConfig
	now     func() time.Time
	logger  *slog.Logger
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter. A nil now uses time.Now.
func NewRateLimiter(cfg RateLimitConfig, logger *slog.Logger, now func() time.Time) *RateLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     now,
		logger:  logger,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) perToken() time.Duration {
	return time.Minute / time.Duration(rl.cfg.RequestsPerMinute)
}

// Allow takes a token for ip. When none is left it reports how long until
// the next one.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	if rl.cfg.RequestsPerMinute <= 0 {
		return true, 0
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.cfg.Burst), last: now}
		rl.buckets[ip] = b
	}
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = math.Min(float64(rl.cfg.Burst), b.tokens+float64(elapsed)/float64(rl.perToken()))
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) * float64(rl.perToken()))
	return false, wait
}

// GC drops buckets that have refilled completely. The poller calls it.
func (rl *RateLimiter) GC() int {
	if rl.cfg.RequestsPerMinute <= 0 {
		return 0
	}
	full := time.Duration(rl.cfg.Burst) * rl.perToken()
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for ip, b := range rl.buckets {
		if now.Sub(b.last) >= full {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

// Middleware answers 429 with a JSON error and Retry-After when the client
// IP has no token left.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ExtractIP(r)
		ok, wait := rl.Allow(ip)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)
		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error":        "rate limit exceeded",
			"remaining_ms": wait.Milliseconds(),
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
