package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iliyamo/turf-booking/internal/config"
	"github.com/iliyamo/turf-booking/internal/logging"
)

// tokenBucket refills refill_tokens every interval_ms up to capacity and
// takes one token per call.  Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
    tokens = math.min(capacity, tokens + intervals * refill_tokens)
    last_refill = last_refill + intervals * interval_ms
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_after_ms }
`)

// decision is the outcome of one limiter check.
type decision struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// NewTokenBucket limits requests per key.  With a Redis client the bucket
// is shared by every instance; without one each process keeps its own
// buckets.  Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	check := redisCheck(cfg, rdb)
	if rdb == nil {
		check = localCheck(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			d, err := check(c, key)
			if err != nil {
				logging.FromContext(c.Request().Context()).WithError(err).WithField("key", key).Warn("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.retry.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				logging.FromContext(c.Request().Context()).WithFields(logrus.Fields{"key": key, "retry_after": secs}).Info("rate limited")
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func redisCheck(cfg config.RateLimitConfig, rdb *redis.Client) func(echo.Context, string) (decision, error) {
	return func(c echo.Context, key string) (decision, error) {
		vals, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
			time.Now().UnixMilli(),
			cfg.Capacity,
			cfg.RefillTokens,
			cfg.RefillInterval.Milliseconds(),
			int64(cfg.TTL/time.Second),
		).Int64Slice()
		if err != nil {
			return decision{}, err
		}
		if len(vals) != 3 {
			return decision{}, redis.Nil
		}
		return decision{allowed: vals[0] == 1, remaining: vals[1], retry: time.Duration(vals[2]) * time.Millisecond}, nil
	}
}

// localCheck keeps one golang.org/x/time/rate limiter per key.  Limiters
// idle for longer than cfg.TTL are dropped on the next sweep.
func localCheck(cfg config.RateLimitConfig) func(echo.Context, string) (decision, error) {
	type entry struct {
		lim  *rate.Limiter
		seen time.Time
	}
	var (
		mu        sync.Mutex
		buckets   = map[string]*entry{}
		lastSweep = time.Now()
	)
	every := rate.Every(cfg.RefillInterval / time.Duration(cfg.RefillTokens))

	return func(_ echo.Context, key string) (decision, error) {
		now := time.Now()
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastSweep) > cfg.TTL {
			for k, e := range buckets {
				if now.Sub(e.seen) > cfg.TTL {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}
		e, ok := buckets[key]
		if !ok {
			e = &entry{lim: rate.NewLimiter(every, cfg.Capacity)}
			buckets[key] = e
		}
		e.seen = now

		r := e.lim.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			return decision{retry: delay}, nil
		}
		return decision{allowed: true, remaining: int64(e.lim.TokensAt(now))}, nil
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := keyUser(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
