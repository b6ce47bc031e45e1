package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pinchtab/surf/internal/config"
	"github.com/pinchtab/surf/internal/web"
)

var (
	metricRequestsTotal   uint64
	metricRequestsFailed  uint64
	metricRequestLatencyN uint64
	metricRateLimited     uint64
	metricWSClients       int64
)

// quietPath reports paths polled by supervisors. They skip rate limiting
// and log at debug level.
func quietPath(p string) bool {
	return p == "/health" || p == "/metrics"
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &web.StatusWriter{ResponseWriter: w, Code: 200}
		next.ServeHTTP(sw, r)
		ms := uint64(time.Since(start).Milliseconds())
		atomic.AddUint64(&metricRequestsTotal, 1)
		atomic.AddUint64(&metricRequestLatencyN, ms)
		if sw.Code >= 400 {
			atomic.AddUint64(&metricRequestsFailed, 1)
		}

		level := slog.LevelInfo
		switch {
		case sw.Code >= 500:
			level = slog.LevelWarn
		case quietPath(r.URL.Path):
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "request",
			"requestId", w.Header().Get("X-Request-Id"),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Code,
			"ms", ms,
		)
	})
}

// AuthMiddleware requires the configured bearer token. Browsers cannot set
// headers on a WebSocket handshake, so GET /events may pass it as ?token=.
func AuthMiddleware(cfg *config.RuntimeConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok && r.Method == http.MethodGet && r.URL.Path == "/events" {
			got, ok = r.URL.Query().Get("token"), r.URL.Query().Has("token")
		}
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="surf", error="missing_token"`)
			web.ErrorCode(w, 401, "missing_token", "unauthorized", false, nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="surf", error="bad_token"`)
			web.ErrorCode(w, 401, "bad_token", "unauthorized", false, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
		h.Set("Access-Control-Expose-Headers", "X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware keeps the caller's X-Request-Id or assigns a short
// random one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r)
	})
}

// RateLimiter counts requests per client in a sliding window. A WebSocket
// upgrade counts once; the open stream does not.
type RateLimiter struct {
	window  time.Duration
	max     int
	proxies []netip.Prefix
	now     func() time.Time

	mu        sync.Mutex
	clients   map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter builds a limiter from cfg. X-Forwarded-For is honoured
// only when the peer address is one of cfg.TrustedProxies.
func NewRateLimiter(cfg *config.RuntimeConfig) *RateLimiter {
	l := &RateLimiter{
		window:  cfg.RateWindow,
		max:     cfg.RateLimit,
		now:     time.Now,
		clients: make(map[string][]time.Time),
	}
	for _, p := range cfg.TrustedProxies {
		prefix, err := parsePrefix(p)
		if err != nil {
			slog.Warn("ignoring trusted proxy", "value", p, "err", err)
			continue
		}
		l.proxies = append(l.proxies, prefix)
	}
	return l
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// clientKey is the peer address, or the first X-Forwarded-For hop when the
// peer is a trusted proxy.
func (l *RateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" || len(l.proxies) == 0 {
		return host
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	for _, p := range l.proxies {
		if p.Contains(peer.Unmap()) {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
			break
		}
	}
	return host
}

// allow records a hit for key and reports whether it fits the window.
func (l *RateLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}
	hits := l.clients[key]
	kept := hits[:0]
	for _, t := range hits {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.clients[key] = kept
		return false
	}
	l.clients[key] = append(kept, now)
	return true
}

// sweep forgets clients with no hit inside the window.
func (l *RateLimiter) sweep(now time.Time) {
	for key, hits := range l.clients {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= l.window {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

func (l *RateLimiter) clientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l.max <= 0 || l.window <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.allow(l.clientKey(r)) {
			atomic.AddUint64(&metricRateLimited, 1)
			web.ErrorCode(w, 429, "rate_limited", "too many requests", true,
				map[string]any{"windowSec": int(l.window.Seconds()), "max": l.max})
			return
		}
		next.ServeHTTP(w, r)
	})
}
