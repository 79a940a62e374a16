// Package config loads and validates the module configuration from a YAML
// file with FEEDCACHE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-feedcache/cache"
)

// Backends accepted by the cache and options sections.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the top-level configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Options    OptionsConfig    `yaml:"options"`
	Affiliates AffiliatesConfig `yaml:"affiliates"`
	Selection  SelectionConfig  `yaml:"selection"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// APIConfig holds the product API credentials and the host URLs used to
// build placeholder records. AccessID and SecretKey are read by the host
// when it constructs its api.Client. Timeout bounds every remote call.
type APIConfig struct {
	AccessID  string        `yaml:"accessId"`
	SecretKey string        `yaml:"secretKey"`
	Timeout   time.Duration `yaml:"timeout"`
	AdminURL  string        `yaml:"adminUrl"`
	AssetsURL string        `yaml:"assetsUrl"`
}

// CacheConfig selects the cache backend and sizes the memory store.
type CacheConfig struct {
	Backend            string        `yaml:"backend"`
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"numShards"`
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"evictionPercentage"`
	EvictionInterval   time.Duration `yaml:"evictionInterval"`
}

// Store returns the memory store configuration.
func (c CacheConfig) Store() cache.Config {
	return cache.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// OptionsConfig selects where host options, such as the account snapshot,
// are persisted.
type OptionsConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// AffiliatesConfig holds the affiliate network keys.
type AffiliatesConfig struct {
	ZanoxConnectionKey       string `yaml:"zanoxConnectionKey"`
	PartnerizeApplicationKey string `yaml:"partnerizeApplicationKey"`
	PartnerizeUserAPIKey     string `yaml:"partnerizeUserApiKey"`
	PartnerizePublisherID    string `yaml:"partnerizePublisherId"`
	EffiliationKey           string `yaml:"effiliationKey"`
}

// SelectionConfig lists the networks and merchants every search is
// restricted to.
type SelectionConfig struct {
	NetworkIDs  []int `yaml:"networkIds"`
	MerchantIDs []int `yaml:"merchantIds"`
	Required    bool  `yaml:"required"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles Prometheus collectors.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) over the defaults and applies
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a configuration backed entirely by process memory.
func Default() *Config {
	store := cache.DefaultConfig()
	return &Config{
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:            BackendMemory,
			Capacity:           store.Capacity,
			NumShards:          store.NumShards,
			TTL:                store.TTL,
			EvictionPercentage: store.EvictionPercentage,
			EvictionInterval:   store.EvictionInterval,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "feedcache:",
		},
		Options: OptionsConfig{
			Backend: BackendMemory,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.API),
		validation.Field(&c.Cache),
		validation.Field(&c.Redis, validation.Skip.When(c.Cache.Backend != BackendRedis)),
		validation.Field(&c.Options),
		validation.Field(&c.Logging),
	)
}

func (c APIConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func (c CacheConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
	); err != nil {
		return err
	}
	if c.Backend == BackendMemory {
		return c.Store().Validate()
	}
	return nil
}

func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.PoolSize, validation.Min(0)),
	)
}

func (c OptionsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendSQLite, BackendPostgres)),
		validation.Field(&c.DSN, validation.When(c.Backend != BackendMemory, validation.Required)),
	)
}

func (c LoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("json", "text")),
	)
}

// applyEnvOverrides reads FEEDCACHE_* environment variables and overrides
// the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.API.AccessID, "FEEDCACHE_API_ACCESS_ID")
	setString(&cfg.API.SecretKey, "FEEDCACHE_API_SECRET_KEY")
	setDuration(&cfg.API.Timeout, "FEEDCACHE_API_TIMEOUT")
	setString(&cfg.API.AdminURL, "FEEDCACHE_API_ADMIN_URL")
	setString(&cfg.API.AssetsURL, "FEEDCACHE_API_ASSETS_URL")

	setString(&cfg.Cache.Backend, "FEEDCACHE_CACHE_BACKEND")
	setInt(&cfg.Cache.Capacity, "FEEDCACHE_CACHE_CAPACITY")
	setDuration(&cfg.Cache.TTL, "FEEDCACHE_CACHE_TTL")

	setString(&cfg.Redis.Addr, "FEEDCACHE_REDIS_ADDR")
	setString(&cfg.Redis.Password, "FEEDCACHE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FEEDCACHE_REDIS_DB")
	setString(&cfg.Redis.KeyPrefix, "FEEDCACHE_REDIS_KEY_PREFIX")

	setString(&cfg.Options.Backend, "FEEDCACHE_OPTIONS_BACKEND")
	setString(&cfg.Options.DSN, "FEEDCACHE_OPTIONS_DSN")

	setString(&cfg.Affiliates.ZanoxConnectionKey, "FEEDCACHE_ZANOX_CONNECTION_KEY")
	setString(&cfg.Affiliates.PartnerizeApplicationKey, "FEEDCACHE_PARTNERIZE_APPLICATION_KEY")
	setString(&cfg.Affiliates.PartnerizeUserAPIKey, "FEEDCACHE_PARTNERIZE_USER_API_KEY")
	setString(&cfg.Affiliates.PartnerizePublisherID, "FEEDCACHE_PARTNERIZE_PUBLISHER_ID")
	setString(&cfg.Affiliates.EffiliationKey, "FEEDCACHE_EFFILIATION_KEY")

	setInts(&cfg.Selection.NetworkIDs, "FEEDCACHE_SELECTION_NETWORK_IDS")
	setInts(&cfg.Selection.MerchantIDs, "FEEDCACHE_SELECTION_MERCHANT_IDS")

	setString(&cfg.Logging.Level, "FEEDCACHE_LOGGING_LEVEL")
	setString(&cfg.Logging.Format, "FEEDCACHE_LOGGING_FORMAT")

	if v := os.Getenv("FEEDCACHE_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setInts(dst *[]int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	var ids []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return
		}
		ids = append(ids, n)
	}
	*dst = ids
}
