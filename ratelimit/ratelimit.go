// Package ratelimit provides a per-IP token bucket limiter for the public
// API surface. Single-instance only; state lives in process memory.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Olegcreabuilder/createshorts-backend/httputil"
)

// Limiter tracks one token bucket per client IP.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int           // requests per window
	window  time.Duration // refill window
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

// New creates a Limiter allowing rate requests per window per IP.
func New(rate int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
	}
	// Evict idle entries periodically so the map stays bounded.
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			l.evict()
		}
	}()
	return l
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-2 * l.window)
	for ip, b := range l.buckets {
		if b.lastReset.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

// Allow reports whether the given IP still has budget in the current window.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[ip]
	if !ok || now.Sub(b.lastReset) >= l.window {
		l.buckets[ip] = &bucket{tokens: l.rate - 1, lastReset: now}
		return true
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// trustedCIDRs are loopback/private networks whose proxy headers we trust.
var trustedCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"::1/128",
		"fc00::/7",
	}
	var nets []*net.IPNet
	for _, c := range cidrs {
		_, n, _ := net.ParseCIDR(c)
		nets = append(nets, n)
	}
	return nets
}()

func fromTrustedProxy(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, cidr := range trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client IP used as the bucket key. Forwarding headers
// are honored only when the direct peer is a known proxy, so internet
// clients cannot spoof their way past the limit.
func ClientIP(r *http.Request) string {
	if fromTrustedProxy(r.RemoteAddr) {
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			if idx := strings.IndexByte(forwarded, ','); idx != -1 {
				return strings.TrimSpace(forwarded[:idx])
			}
			return strings.TrimSpace(forwarded)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware returns HTTP 429 when the per-IP rate is exceeded.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "60")
				httputil.WriteError(w, http.StatusTooManyRequests, "trop de requêtes")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
