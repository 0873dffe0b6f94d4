// Package config reads the static configuration surface from environment
// variables. Everything is a fixed value with a default; nothing is
// discovered at runtime.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects every tunable of the fetch layer.
type Config struct {
	// Common
	LogLevel  string
	LogPretty bool

	// Providers, highest priority first. Known names: delegate,
	// tencent, sina, netease.
	ProviderOrder []string

	// Pacing
	MinInterval time.Duration
	MaxInterval time.Duration

	// Cache
	CacheTTL time.Duration

	// Transport
	SessionPoolSize int
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RequestTimeout  time.Duration
	Proxies         []string

	// Redis (cache tier). Empty RedisURL keeps the cache memory-only.
	RedisURL string

	// MetricsAddr serves /metrics and /health when non-empty.
	MetricsAddr string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func msDef(s string, def int) time.Duration {
	return time.Duration(atoiDef(s, def)) * time.Millisecond
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnv("LOG_PRETTY", "false") == "true",
		ProviderOrder:   defaultList(splitList(getEnv("PROVIDER_ORDER", "")), []string{"delegate", "tencent", "sina", "netease"}),
		MinInterval:     msDef(getEnv("MIN_INTERVAL_MS", "2000"), 2000),
		MaxInterval:     msDef(getEnv("MAX_INTERVAL_MS", "5000"), 5000),
		CacheTTL:        msDef(getEnv("CACHE_TTL_MS", "300000"), 300000),
		SessionPoolSize: atoiDef(getEnv("SESSION_POOL_SIZE", "3"), 3),
		MaxRetries:      atoiDef(getEnv("MAX_RETRIES", "5"), 5),
		BaseDelay:       msDef(getEnv("BASE_DELAY_MS", "1000"), 1000),
		MaxDelay:        msDef(getEnv("MAX_DELAY_MS", "10000"), 10000),
		RequestTimeout:  msDef(getEnv("REQUEST_TIMEOUT_MS", "15000"), 15000),
		Proxies:         splitList(getEnv("PROXY_LIST", "")),
		RedisURL:        getEnv("REDIS_URL", ""),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
	}
}

func defaultList(list, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}
