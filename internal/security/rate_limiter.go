package security

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/constants"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter throttles clients by IP with one token bucket per client.
// Buckets live in a go-cache so idle clients expire on their own.
type RateLimiter struct {
	limiters  *cache.Cache
	config    *config.RateLimitConfig
	skipPaths map[string]bool
	clock     Clock
	logger    *zap.Logger
	mu        sync.Mutex
	stop      chan struct{}
	stopOnce  sync.Once
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// RateLimitStatus describes the bucket state reported in response headers.
type RateLimitStatus struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Reset      time.Time     `json:"reset"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// NewRateLimiter builds a limiter from a private copy of rlCfg. Requests to
// skipPaths are never throttled; /health and /ready are always skipped.
func NewRateLimiter(rlCfg *config.RateLimitConfig, logger *zap.Logger, skipPaths ...string) *RateLimiter {
	cfg := *rlCfg
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = constants.RateLimitMaxCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rl := &RateLimiter{
		limiters:  cache.New(cfg.CleanupInterval, cfg.CleanupInterval*2),
		config:    &cfg,
		skipPaths: newSkipPaths(skipPaths...),
		clock:     RealClock{},
		logger:    logger,
		stop:      make(chan struct{}),
	}

	if cfg.Enabled {
		go rl.periodicCleanup()
	}

	return rl
}

// Stop ends the background cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// periodicCleanup keeps the number of tracked clients under MaxCacheSize.
func (rl *RateLimiter) periodicCleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictOverflow()
		}
	}
}

func (rl *RateLimiter) evictOverflow() {
	maxSize := rl.config.MaxCacheSize
	currentSize := rl.limiters.ItemCount()
	if currentSize <= maxSize {
		return
	}

	// Drop an extra 10% so the next tick does not evict again right away.
	toRemove := currentSize - maxSize + maxSize/10
	removed := 0
	// Map iteration order is random, which is good enough for picking victims.
	for key := range rl.limiters.Items() {
		if removed >= toRemove {
			break
		}
		rl.limiters.Delete(key)
		removed++
	}

	rl.logger.Warn("Rate limiter cache trimmed",
		zap.Int("removed", removed),
		zap.Int("max_size", maxSize),
	)
}

func (rl *RateLimiter) limiterFor(identifier string, limit *config.RateLimit) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if item, found := rl.limiters.Get(identifier); found {
		return item.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.BurstSize)
	rl.limiters.Set(identifier, limiter, cache.DefaultExpiration)
	return limiter
}

// Allow consumes one token for identifier and reports the resulting status.
func (rl *RateLimiter) Allow(identifier string, limit *config.RateLimit) (bool, *RateLimitStatus) {
	now := rl.clock.Now()
	limiter := rl.limiterFor(identifier, limit)

	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	status := &RateLimitStatus{
		Limit:     limit.BurstSize,
		Remaining: int(math.Max(0, math.Floor(tokens))),
	}

	rps := float64(limit.RequestsPerSecond)
	missing := float64(limit.BurstSize) - tokens
	status.Reset = now.Add(time.Duration(missing / rps * float64(time.Second)))

	if !allowed {
		wait := time.Duration((1 - tokens) / rps * float64(time.Second))
		status.RetryAfter = max(wait, time.Second)
	}

	return allowed, status
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled || rl.shouldSkipRateLimit(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identifier := rl.getIdentifier(r)
		limit := rl.getRateLimit()

		allowed, status := rl.Allow(identifier, limit)

		w.Header().Set(constants.HeaderXRateLimitLimit, strconv.Itoa(status.Limit))
		w.Header().Set(constants.HeaderXRateLimitRemaining, strconv.Itoa(status.Remaining))
		w.Header().Set(constants.HeaderXRateLimitReset, strconv.FormatInt(status.Reset.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(status.RetryAfter.Seconds()))
			w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
			w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
			w.WriteHeader(http.StatusTooManyRequests)

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":       constants.ErrorCodeRateLimitExceeded,
				"message":     fmt.Sprintf("Rate limit exceeded. Try again in %ds", retryAfter),
				"retry_after": retryAfter,
			})

			rl.logger.Warn("Rate limit exceeded",
				zap.String("identifier", identifier),
				zap.String("path", r.URL.Path),
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) getIdentifier(r *http.Request) string {
	return "ip:" + rl.getClientIP(r)
}

// getClientIP keys on the socket peer. Forwarding headers are client
// controlled, so they are read only when the deployment sits behind a proxy
// that overwrites them.
func (rl *RateLimiter) getClientIP(r *http.Request) string {
	if !rl.config.TrustProxyHeaders {
		return remoteHost(r.RemoteAddr)
	}

	if xff := r.Header.Get(constants.HeaderXForwardedFor); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get(constants.HeaderXRealIP); xri != "" {
		return strings.TrimSpace(xri)
	}

	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (rl *RateLimiter) getRateLimit() *config.RateLimit {
	if rl.config.ByIP != nil {
		return rl.config.ByIP
	}
	return rl.config.Global
}

func newSkipPaths(extra ...string) map[string]bool {
	paths := map[string]bool{
		constants.PathHealth: true,
		constants.PathReady:  true,
	}
	for _, p := range extra {
		if p != "" {
			paths[p] = true
		}
	}
	return paths
}

func (rl *RateLimiter) shouldSkipRateLimit(path string) bool {
	return rl.skipPaths[path]
}
