package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Snapshot  SnapshotConfig
	Shopify   ShopifyConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string   `mapstructure:"port"`
	Environment     string   `mapstructure:"environment"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	DefaultPageSize int      `mapstructure:"default_page_size"`
	PageSizes       []int    `mapstructure:"page_sizes"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SnapshotConfig holds POS/ERP snapshot provider configuration
type SnapshotConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	PageSizeHint int           `mapstructure:"page_size_hint"`
	Rate         float64       `mapstructure:"rate"`
}

// ShopifyConfig holds storefront Admin API configuration
type ShopifyConfig struct {
	APIVersion  string `mapstructure:"api_version"`
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
	// Stores entries are "domain" or "domain=token"
	Stores       []string      `mapstructure:"stores"`
	ScanPageSize int           `mapstructure:"scan_page_size"`
	ScanMaxPages int           `mapstructure:"scan_max_pages"`
	ScanTimeout  time.Duration `mapstructure:"scan_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Rate         float64       `mapstructure:"rate"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string `mapstructure:"type"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
}

// DatabaseConfig holds the staging database configuration; an empty URL
// runs on the in-memory staging store.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// StoreDomains returns the configured store domains in order
func (c ShopifyConfig) StoreDomains() []string {
	domains := make([]string, 0, len(c.Stores))
	for _, entry := range c.Stores {
		if domain, _ := splitStoreEntry(entry); domain != "" {
			domains = append(domains, domain)
		}
	}
	return domains
}

// StoreTokens returns the per-store tokens given as "domain=token"
func (c ShopifyConfig) StoreTokens() map[string]string {
	tokens := make(map[string]string)
	for _, entry := range c.Stores {
		if domain, token := splitStoreEntry(entry); domain != "" && token != "" {
			tokens[domain] = token
		}
	}
	return tokens
}

func splitStoreEntry(entry string) (string, string) {
	domain, token, _ := strings.Cut(strings.TrimSpace(entry), "=")
	return strings.TrimSpace(domain), strings.TrimSpace(token)
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/reconcile/")

	// Environment variable settings
	v.SetEnvPrefix("RECONCILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so environment overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.default_page_size", 50)
	v.SetDefault("server.page_sizes", []int{20, 50, 100, 200})

	v.SetDefault("log.level", "info")

	// Snapshot provider defaults
	v.SetDefault("snapshot.base_url", "")
	v.SetDefault("snapshot.api_key", "")
	v.SetDefault("snapshot.timeout", "60s")
	v.SetDefault("snapshot.cache_ttl", "2m")
	v.SetDefault("snapshot.page_size_hint", 500)
	v.SetDefault("snapshot.rate", 2)

	// Storefront defaults
	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("shopify.base_url", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.stores", []string{})
	v.SetDefault("shopify.scan_page_size", 100)
	v.SetDefault("shopify.scan_max_pages", 40)
	v.SetDefault("shopify.scan_timeout", "60s")
	v.SetDefault("shopify.cache_ttl", "5m")
	v.SetDefault("shopify.rate", 2)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Snapshot.BaseURL == "" {
		return fmt.Errorf("snapshot base URL is required (set RECONCILE_SNAPSHOT_BASE_URL)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Shopify.ScanPageSize <= 0 || config.Shopify.ScanPageSize > 250 {
		return fmt.Errorf("shopify scan page size must be between 1 and 250, got: %d", config.Shopify.ScanPageSize)
	}

	if config.Shopify.ScanMaxPages <= 0 {
		return fmt.Errorf("shopify scan max pages must be positive, got: %d", config.Shopify.ScanMaxPages)
	}

	if config.Shopify.ScanTimeout < 0 {
		return fmt.Errorf("shopify scan timeout must not be negative, got: %s", config.Shopify.ScanTimeout)
	}

	if config.Server.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive, got: %d", config.Server.DefaultPageSize)
	}

	return nil
}
