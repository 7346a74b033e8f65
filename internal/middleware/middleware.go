package middleware

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okayama-voice/opinion-map/internal/utils"
	"golang.org/x/time/rate"
)

const (
	ClientIDHeader = "X-Client-ID"
	ClientIDCookie = "client_id"
)

// ClientMiddleware identifies the browser behind a request. The client token
// comes from the X-Client-ID header or the client_id cookie; a new token is
// issued as a cookie when neither is present.
func ClientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ClientIDHeader))
		if id == "" {
			if cookie, err := r.Cookie(ClientIDCookie); err == nil {
				id = strings.TrimSpace(cookie.Value)
			}
		}
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientIDCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(utils.WithClientID(r.Context(), id)))
	})
}

// CORSMiddleware echoes the origin back only if it is on the allow-list.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, X-Client-ID")
			}

			w.Header().Set("Access-Control-Expose-Headers", "Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter hands out one token bucket per client.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows each client perMinute requests per minute with the
// given burst.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

func (rl *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Forget idle clients once the map grows.
	if len(rl.limiters) > 10000 {
		for k, cl := range rl.limiters {
			if now.Sub(cl.lastSeen) > 10*time.Minute {
				delete(rl.limiters, k)
			}
		}
	}

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// NewRateLimiterFromEnv reads <prefix>_PER_MINUTE and <prefix>_BURST, using
// the defaults for unset or non-positive values.
func NewRateLimiterFromEnv(prefix string, perMinute float64, burst int) *RateLimiter {
	if v, err := strconv.ParseFloat(os.Getenv(prefix+"_PER_MINUTE"), 64); err == nil && v > 0 {
		perMinute = v
	}
	if v, err := strconv.Atoi(os.Getenv(prefix + "_BURST")); err == nil && v > 0 {
		burst = v
	}
	return NewRateLimiter(perMinute, burst)
}

// Allow reports whether the client identified by key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	return rl.get(key, now).AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// the id ClientMiddleware put in the context, else by remote address.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := utils.GetClientIDFromContext(r.Context())
		if !ok {
			key = r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}
		}
		if !rl.Allow(key) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
