package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"brewbook/internal/config"
)

const limiterIdleTTL = 30 * time.Minute

// clientLimiter applies a token bucket per caller on the expensive routes.
// Callers are keyed by token subject, falling back to the client address.
type clientLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
	sweptAt time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	if !cfg.Enabled() {
		return &clientLimiter{}
	}
	return &clientLimiter{
		limit:   rate.Every(cfg.Window.Duration / time.Duration(cfg.Requests)),
		burst:   cfg.Requests,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (l *clientLimiter) enabled() bool {
	return l.clients != nil
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	if !l.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := AuthorID(r.Context())
		if key == "" {
			key = clientAddr(r)
		}
		reservation := l.reserve(key)
		if !reservation.OK() || reservation.Delay() > 0 {
			wait := reservation.Delay()
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: errRateLimited.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *clientLimiter) reserve(key string) *rate.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.sweptAt) > limiterIdleTTL {
		for k, b := range l.clients {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.sweptAt = now
	}
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter.ReserveN(now, 1)
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
