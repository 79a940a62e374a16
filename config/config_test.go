package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedcache.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api:
  accessId: abc
  secretKey: shh
  timeout: 10s
  adminUrl: https://shop.example.com/wp-admin/
cache:
  backend: redis
  capacity: 500
redis:
  addr: cache:6379
  db: 2
options:
  backend: sqlite
  dsn: file:options.db
selection:
  networkIds: [126, 3]
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.AccessID != "abc" || cfg.API.Timeout != 10*time.Second {
		t.Errorf("unexpected api config: %+v", cfg.API)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Cache.Capacity != 500 || cfg.Cache.NumShards != 256 {
		t.Errorf("expected file values over defaults, got %+v", cfg.Cache)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 || cfg.Redis.KeyPrefix != "feedcache:" {
		t.Errorf("unexpected redis config: %+v", cfg.Redis)
	}
	if len(cfg.Selection.NetworkIDs) != 2 || cfg.Selection.NetworkIDs[0] != 126 {
		t.Errorf("unexpected selection: %+v", cfg.Selection)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FEEDCACHE_API_ACCESS_ID", "from-env")
	t.Setenv("FEEDCACHE_CACHE_BACKEND", "redis")
	t.Setenv("FEEDCACHE_REDIS_DB", "4")
	t.Setenv("FEEDCACHE_SELECTION_MERCHANT_IDS", "9, 10")
	t.Setenv("FEEDCACHE_METRICS_ENABLED", "false")
	t.Setenv("FEEDCACHE_API_TIMEOUT", "2m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.AccessID != "from-env" || cfg.API.Timeout != 2*time.Minute {
		t.Errorf("unexpected api config: %+v", cfg.API)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Redis.DB != 4 {
		t.Errorf("unexpected overrides: cache=%+v redis=%+v", cfg.Cache, cfg.Redis)
	}
	if len(cfg.Selection.MerchantIDs) != 2 || cfg.Selection.MerchantIDs[1] != 10 {
		t.Errorf("unexpected merchant ids %v", cfg.Selection.MerchantIDs)
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled")
	}
}

func TestLoad_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("FEEDCACHE_REDIS_DB", "two")
	t.Setenv("FEEDCACHE_SELECTION_NETWORK_IDS", "1,x")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.DB != 0 || cfg.Selection.NetworkIDs != nil {
		t.Errorf("invalid values should be ignored: %+v %+v", cfg.Redis, cfg.Selection)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcache" }, "Backend"},
		{"memory store without capacity", func(c *Config) { c.Cache.Capacity = 0 }, "Capacity"},
		{"redis without address", func(c *Config) { c.Cache.Backend = BackendRedis; c.Redis.Addr = "" }, "Addr"},
		{"sql options without dsn", func(c *Config) { c.Options.Backend = BackendPostgres }, "DSN"},
		{"unknown options backend", func(c *Config) { c.Options.Backend = "mysql"; c.Options.DSN = "x" }, "Backend"},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }, "Timeout"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error mentioning %q, got %q", tt.field, err.Error())
			}
		})
	}
}

func TestValidate_RedisIgnoredForMemoryBackend(t *testing.T) {
	cfg := Default()
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis section should not be validated for the memory backend: %v", err)
	}
}

func TestCacheConfig_Store(t *testing.T) {
	cfg := Default()
	store := cfg.Cache.Store()
	if store.Capacity != cfg.Cache.Capacity || store.TTL != cfg.Cache.TTL {
		t.Errorf("unexpected store config: %+v", store)
	}
}
