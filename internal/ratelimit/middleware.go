package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vsauth/internal/registry/metrics"
	"vsauth/pkg/requestcontext"
)

const (
	// DefaultLimit and DefaultWindow mirror the public endpoint's historical
	// budget: 30 requests per minute per client.
	DefaultLimit  = 30
	DefaultWindow = 60 * time.Second
)

// Limiter is chi middleware applying a per-client-IP sliding window. Store
// failures fail open: an unavailable limiter must not take the public
// verification endpoint down with it.
type Limiter struct {
	store   BucketStore
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type LimiterOption func(l *Limiter)

func WithLimit(limit int, window time.Duration) LimiterOption {
	return func(l *Limiter) {
		l.limit = limit
		l.window = window
	}
}

func WithLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) LimiterOption {
	return func(l *Limiter) { l.metrics = m }
}

func NewLimiter(store BucketStore, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  DefaultLimit,
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handler wraps next with the rate limit. The resolved client IP is shared
// through the request context so downstream handlers log the same identity
// the limiter keyed on.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := requestcontext.ClientIP(r.Context())
		if ip == "" {
			ip = clientIP(r)
			r = r.WithContext(requestcontext.WithClientIP(r.Context(), ip))
		}

		result, err := l.store.Allow(r.Context(), ip, l.limit, l.window)
		if err != nil {
			l.logger.WarnContext(r.Context(), "rate limit store unavailable, failing open", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if l.metrics != nil {
				l.metrics.IncrementRateLimitRejected()
			}
			retryAfter := max(int(time.Until(result.ResetAt).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "rate limit exceeded, try again later",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop (the service runs behind a
// proxy in production) and falls back to the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
