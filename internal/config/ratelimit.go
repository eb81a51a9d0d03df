package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig configures one token bucket limiter.  Scopes share the
// same variable names under different prefixes: RATE_LIMIT_* for the API as
// a whole and PAYMENT_RATE_LIMIT_* for the payment endpoints.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the limiter for the given env prefix, e.g.
// "RATE_LIMIT" or "PAYMENT_RATE_LIMIT".  def supplies the defaults.
func LoadRateLimitConfig(envPrefix string, def RateLimitConfig) RateLimitConfig {
	k := func(name string) string { return envPrefix + "_" + name }
	cfg := RateLimitConfig{
		Enabled:        envBool(k("ENABLED"), def.Enabled),
		Capacity:       envInt(k("CAPACITY"), def.Capacity),
		RefillTokens:   envInt(k("REFILL_TOKENS"), def.RefillTokens),
		RefillInterval: envDur(k("REFILL_INTERVAL"), def.RefillInterval),
		TTL:            envDur(k("TTL"), def.TTL),
		KeyStrategy:    envStr(k("KEY_STRATEGY"), def.KeyStrategy),
		Prefix:         envStr(k("PREFIX"), def.Prefix),
		Debug:          envBool(k("DEBUG"), def.Debug),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// DefaultAPIRateLimit is applied to every route.
var DefaultAPIRateLimit = RateLimitConfig{
	Enabled:        true,
	Capacity:       120,
	RefillTokens:   2,
	RefillInterval: time.Second,
	TTL:            10 * time.Minute,
	KeyStrategy:    "ip",
	Prefix:         "rl:api",
}

// DefaultPaymentRateLimit is stricter and keyed by caller and route so one
// client cannot hammer order creation.
var DefaultPaymentRateLimit = RateLimitConfig{
	Enabled:        true,
	Capacity:       10,
	RefillTokens:   1,
	RefillInterval: 6 * time.Second,
	TTL:            10 * time.Minute,
	KeyStrategy:    "ip_user_route",
	Prefix:         "rl:pay",
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
