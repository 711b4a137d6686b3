package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"landr/internal/pkg/errors"
	"landr/internal/platform/config"
)

const (
	LimitRead  = "api_read"
	LimitWrite = "api_write"
)

const idleBucketTTL = 10 * time.Minute

type RateLimiter struct {
	store  sync.Map // map[string]*limitEntry
	limits map[string]int
}

type limitEntry struct {
	bucket *ratelimit.Bucket

	mu         sync.Mutex
	lastAccess time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits: map[string]int{
			LimitRead:  cfg.APIReadPerMinute,
			LimitWrite: cfg.APIWritePerMinute,
		},
	}
}

// Cleanup drops buckets that have been idle for a while. It returns when ctx
// is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(idleBucketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.prune(now)
		}
	}
}

func (rl *RateLimiter) prune(now time.Time) {
	rl.store.Range(func(key, value any) bool {
		entry := value.(*limitEntry)
		entry.mu.Lock()
		if now.Sub(entry.lastAccess) > idleBucketTTL {
			rl.store.Delete(key)
		}
		entry.mu.Unlock()
		return true
	})
}

// Allow takes one token from the per-minute bucket for key. A limit of zero
// or less disables limiting.
func (rl *RateLimiter) Allow(key string, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}

	val, ok := rl.store.Load(key)
	if !ok {
		val, _ = rl.store.LoadOrStore(key, &limitEntry{
			bucket: ratelimit.NewBucketWithRate(float64(perMinute)/60, int64(perMinute)),
		})
	}
	entry := val.(*limitEntry)

	entry.mu.Lock()
	entry.lastAccess = time.Now()
	entry.mu.Unlock()

	return entry.bucket.TakeAvailable(1) == 1
}

// Handle picks the read or write budget from the request method.
func (rl *RateLimiter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limitType := LimitWrite
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			limitType = LimitRead
		}

		limit := rl.limits[limitType]
		if !rl.Allow(clientIP(r)+":"+limitType, limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute/time.Second)/max(limit, 1)+1))
			errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded")
			return
		}

		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
