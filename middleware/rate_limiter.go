package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ahadumarket/utils"
)

// In-memory per-IP fixed-window limiter plus a progressive lockout for
// repeated initData signature failures. The lockout prefers Redis when
// configured so multiple instances share state.

type timestamps []int64 // unix nanos

func nowUnix() int64 { return time.Now().UnixNano() }

func getEnvInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return time.Duration(v) * time.Second
		}
	}
	return def
}

// trustedProxies returns the configured proxy CIDRs whose forwarding
// headers may be honored.
func trustedProxies() []string {
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		return strings.Split(v, ",")
	}
	return nil
}

// IPRateLimiter implements per-IP fixed-window counters with optional
// trusted-proxy parsing.
type IPRateLimiter struct {
	window      time.Duration
	mu          sync.Mutex
	state       map[string]timestamps
	cleanupTick time.Duration
	trustedCIDR []string
	maxReq      int
}

func NewIPRateLimiter(maxReq int, window time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		window:      window,
		state:       make(map[string]timestamps),
		cleanupTick: getEnvDuration("RATE_CLEANUP_SECONDS", 60*time.Second),
		trustedCIDR: trustedProxies(),
		maxReq:      maxReq,
	}
	go l.cleanupLoop()
	return l
}

// clientIPGeneric returns the client IP string. If trustedCIDR is
// provided, X-Forwarded-For / X-Real-IP headers are honored when the
// remote addr is inside one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware applies per-IP limits and sets rate-limit headers.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		now := nowUnix()
		windowNs := int64(l.window)

		l.mu.Lock()
		arr := l.state[ip]
		var filtered timestamps
		cutoff := now - windowNs
		for _, ts := range arr {
			if ts >= cutoff {
				filtered = append(filtered, ts)
			}
		}
		filtered = append(filtered, now)
		l.state[ip] = filtered
		count := len(filtered)
		l.mu.Unlock()

		limit := l.maxReq
		if limit <= 0 {
			limit = getEnvInt("RATE_IP_DEFAULT", 200)
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > limit {
			retryAfter := int(l.window.Seconds())
			if len(filtered) > 0 {
				oldest := filtered[0]
				for _, ts := range filtered {
					if ts < oldest {
						oldest = ts
					}
				}
				if ra := (oldest + windowNs - now) / 1e9; ra > 0 {
					retryAfter = int(ra)
				} else {
					retryAfter = 1
				}
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			utils.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) cleanupLoop() {
	tick := time.NewTicker(l.cleanupTick)
	defer tick.Stop()
	for range tick.C {
		l.mu.Lock()
		now := nowUnix()
		for k, arr := range l.state {
			cutoff := now - int64(l.window)
			var filtered timestamps
			for _, ts := range arr {
				if ts >= cutoff {
					filtered = append(filtered, ts)
				}
			}
			if len(filtered) == 0 {
				delete(l.state, k)
			} else {
				l.state[k] = filtered
			}
		}
		l.mu.Unlock()
	}
}

// Lockout tracker for repeated initData signature failures, keyed by
// client IP. Uses Redis when available for cross-instance consistency.
var (
	authFailMu   sync.Mutex
	authFailMap  = make(map[string]int)
	authLockMap  = make(map[string]int64) // ip -> lockUntil unix nanos
	authFailFree = 5                      // failures tolerated before locking
)

func authLockDuration(failures int) time.Duration {
	switch {
	case failures <= authFailFree:
		return 0
	case failures == authFailFree+1:
		return 1 * time.Minute
	case failures == authFailFree+2:
		return 5 * time.Minute
	case failures == authFailFree+3:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// IsAuthBlocked reports whether an IP is locked out and for how long.
func IsAuthBlocked(ip string) (bool, time.Duration) {
	if utils.RedisClient != nil {
		ctx := context.Background()
		ttl, err := utils.RedisClient.TTL(ctx, "initdata:lock:"+ip).Result()
		if err == nil && ttl > 0 {
			return true, ttl
		}
		return false, 0
	}
	authFailMu.Lock()
	defer authFailMu.Unlock()
	until := authLockMap[ip]
	if until == 0 {
		return false, 0
	}
	now := nowUnix()
	if until > now {
		return true, time.Duration(until - now)
	}
	delete(authLockMap, ip)
	authFailMap[ip] = 0
	return false, 0
}

// RecordFailedAuth counts a signature failure and applies a progressive
// lockout once the tolerance is exhausted.
func RecordFailedAuth(ip string) {
	if utils.RedisClient != nil {
		ctx := context.Background()
		failKey := "initdata:fail:" + ip
		failures, err := utils.RedisClient.Incr(ctx, failKey).Result()
		if err == nil {
			_, _ = utils.RedisClient.Expire(ctx, failKey, 30*time.Minute).Result()
			if d := authLockDuration(int(failures)); d > 0 {
				_ = utils.RedisClient.Set(ctx, "initdata:lock:"+ip, "1", d).Err()
			}
			return
		}
	}
	authFailMu.Lock()
	defer authFailMu.Unlock()
	authFailMap[ip]++
	if d := authLockDuration(authFailMap[ip]); d > 0 {
		authLockMap[ip] = nowUnix() + int64(d)
	}
}

// ResetFailedAuth clears the failure counter after a valid signature.
func ResetFailedAuth(ip string) {
	if utils.RedisClient != nil {
		ctx := context.Background()
		_, _ = utils.RedisClient.Del(ctx, "initdata:fail:"+ip, "initdata:lock:"+ip).Result()
		return
	}
	authFailMu.Lock()
	defer authFailMu.Unlock()
	delete(authLockMap, ip)
	authFailMap[ip] = 0
}
