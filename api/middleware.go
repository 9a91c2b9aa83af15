package api

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// HTTPRecorder receives one observation per served request.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Middleware holds the state shared by the request middleware.
type Middleware struct {
	jwtSecret []byte
	limiter   *rateLimiterStore
	recorder  HTTPRecorder
}

// NewMiddleware creates a new Middleware. An empty jwtSecret disables
// authentication; a nil recorder disables request metrics.
func NewMiddleware(jwtSecret []byte, recorder HTTPRecorder) *Middleware {
	return &Middleware{jwtSecret: jwtSecret, recorder: recorder}
}

// RequireAuth validates the JWT Bearer token and stores its subject in the
// request context. Returns 401 if the token is missing or invalid.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	if len(m.jwtSecret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := m.authenticate(r)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(SetSubject(r.Context(), sub)))
	})
}

// ipLimiter holds a per-IP token bucket and the last time it was accessed.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds per-IP limiters.
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	b        int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newRateLimiterStore(rps float64, burst int) *rateLimiterStore {
	s := &rateLimiterStore{
		limiters: make(map[string]*ipLimiter),
		r:        rate.Limit(rps),
		b:        burst,
		stopCh:   make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// cleanup periodically removes stale entries until stop is called.
func (s *rateLimiterStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for ip, l := range s.limiters {
				if time.Since(l.lastSeen) > 10*time.Minute {
					delete(s.limiters, ip)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *rateLimiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

// Stop shuts down the background cleanup goroutine started by RateLimit.
// It is safe to call multiple times.
func (m *Middleware) Stop() {
	if m.limiter != nil {
		m.limiter.stopOnce.Do(func() { close(m.limiter.stopCh) })
	}
}

// RateLimit returns middleware that limits requests per IP to rps with the
// given burst. A non-positive rps disables limiting. Requests over the limit
// receive HTTP 429 with a Retry-After header. Every RateLimit middleware of
// one Middleware shares a single per-IP store; call Stop to release it.
func (m *Middleware) RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	if m.limiter == nil {
		m.limiter = newRateLimiterStore(rps, burst)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := m.limiter.get(realIP(r))
			reservation := limiter.Reserve()
			if d := reservation.Delay(); d > 0 {
				// Cancel so the token is returned; we are rejecting this request.
				reservation.Cancel()
				retryAfter := int(math.Ceil(d.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for Instrument.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade through; a hijacked request is recorded
// as 101.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Instrument records method, route pattern, status and latency of every
// request. The route is the matched ServeMux pattern, so it must wrap the mux.
func (m *Middleware) Instrument(next http.Handler) http.Handler {
	if m.recorder == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		} else if _, path, ok := strings.Cut(route, " "); ok {
			route = path
		}
		m.recorder.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

// realIP extracts the client IP from common proxy headers or RemoteAddr.
func realIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// Take the first address in the list.
		if idx := strings.Index(fwd, ","); idx != -1 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	// Strip port from RemoteAddr, handling IPv6 addresses correctly.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authenticate extracts and validates the Bearer token and returns its
// subject.
func (m *Middleware) authenticate(r *http.Request) (string, error) {
	tokenStr, ok := bearerToken(r)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}

// bearerToken reads the token from the Authorization header, or from the
// access_token query parameter for WebSocket clients that cannot set headers.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		tok := r.URL.Query().Get("access_token")
		return tok, tok != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
