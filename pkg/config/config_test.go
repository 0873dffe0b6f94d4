package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if got, want := cfg.ProviderOrder, []string{"delegate", "tencent", "sina", "netease"}; len(got) != len(want) {
		t.Fatalf("ProviderOrder = %v, want %v", got, want)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ProviderOrder[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	}
	if cfg.MinInterval != 2*time.Second || cfg.MaxInterval != 5*time.Second {
		t.Errorf("interval band = [%v, %v]", cfg.MinInterval, cfg.MaxInterval)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.SessionPoolSize != 3 || cfg.MaxRetries != 5 {
		t.Errorf("SessionPoolSize = %d, MaxRetries = %d", cfg.SessionPoolSize, cfg.MaxRetries)
	}
	if len(cfg.Proxies) != 0 || cfg.RedisURL != "" || cfg.MetricsAddr != "" {
		t.Errorf("optional settings should default empty: %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROVIDER_ORDER", "tencent, sina")
	t.Setenv("MIN_INTERVAL_MS", "100")
	t.Setenv("MAX_INTERVAL_MS", "250")
	t.Setenv("CACHE_TTL_MS", "60000")
	t.Setenv("PROXY_LIST", "http://10.0.0.1:8080,http://10.0.0.2:8080")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("LOG_PRETTY", "true")

	cfg := Load()

	if len(cfg.ProviderOrder) != 2 || cfg.ProviderOrder[0] != "tencent" || cfg.ProviderOrder[1] != "sina" {
		t.Errorf("ProviderOrder = %v", cfg.ProviderOrder)
	}
	if cfg.MinInterval != 100*time.Millisecond || cfg.MaxInterval != 250*time.Millisecond {
		t.Errorf("interval band = [%v, %v]", cfg.MinInterval, cfg.MaxInterval)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if len(cfg.Proxies) != 2 || cfg.Proxies[1] != "http://10.0.0.2:8080" {
		t.Errorf("Proxies = %v", cfg.Proxies)
	}
	if cfg.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if !cfg.LogPretty {
		t.Error("LogPretty = false, want true")
	}
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("MIN_INTERVAL_MS", "")

	cfg := Load()
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want default 5", cfg.MaxRetries)
	}
	if cfg.MinInterval != 2*time.Second {
		t.Errorf("MinInterval = %v, want default 2s", cfg.MinInterval)
	}
}
