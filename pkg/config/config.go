// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Content, Search, RateLimit, CSRF, Redis, Postgres, Kafka,
// etc.).
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the cache and rate-limit store settings.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Content   ContentConfig   `yaml:"content"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CSRF      CSRFConfig      `yaml:"csrf"`
	CORS      CORSConfig      `yaml:"cors"`
	Admin     AdminConfig     `yaml:"admin"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORTAL_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"PORTAL_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"PORTAL_SERVER_WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" env:"PORTAL_SERVER_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"PORTAL_SERVER_SHUTDOWN_TIMEOUT"`
	// TrustedProxies lists the addresses or CIDR ranges whose forwarding
	// headers are believed. Empty means the connection address is always
	// the client.
	TrustedProxies []string `yaml:"trustedProxies" env:"PORTAL_SERVER_TRUSTED_PROXIES"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, p := range s.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("server.trustedProxies: %w", err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("server.trustedProxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// ContentConfig points at the directory of static JSON content files.
type ContentConfig struct {
	DataDir     string        `yaml:"dataDir" env:"PORTAL_CONTENT_DATA_DIR"`
	LoadTimeout time.Duration `yaml:"loadTimeout" env:"PORTAL_CONTENT_LOAD_TIMEOUT"`
}

// SearchConfig controls the search index cache and query limits.
type SearchConfig struct {
	CacheBackend    string        `yaml:"cacheBackend" env:"PORTAL_SEARCH_CACHE_BACKEND"`
	CacheTTL        time.Duration `yaml:"cacheTTL" env:"PORTAL_SEARCH_CACHE_TTL"`
	DefaultLimit    int           `yaml:"defaultLimit" env:"PORTAL_SEARCH_DEFAULT_LIMIT"`
	MaxLimit        int           `yaml:"maxLimit" env:"PORTAL_SEARCH_MAX_LIMIT"`
	MinQueryLength  int           `yaml:"minQueryLength"`
	MaxQueryLength  int           `yaml:"maxQueryLength"`
	SuggestionLimit int           `yaml:"suggestionLimit"`
	MaxSuggestions  int           `yaml:"maxSuggestions"`
}

// LimitConfig describes one fixed-window limiter.
type LimitConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Window      time.Duration `yaml:"window"`
}

// RateLimitConfig selects the counter store and the per-route limits.
type RateLimitConfig struct {
	Backend    string      `yaml:"backend" env:"PORTAL_RATELIMIT_BACKEND"`
	Contact    LimitConfig `yaml:"contact"`
	Newsletter LimitConfig `yaml:"newsletter"`
	API        LimitConfig `yaml:"api"`
}

// CSRFConfig controls token lifetime and the session cookie.
//
// Secret is carried for compatibility with deployments that set it; tokens
// are not signed with it.
type CSRFConfig struct {
	MaxAge       time.Duration `yaml:"maxAge" env:"PORTAL_CSRF_MAX_AGE"`
	CookieName   string        `yaml:"cookieName"`
	Secret       string        `yaml:"secret" env:"PORTAL_CSRF_SECRET"`
	SecureCookie bool          `yaml:"secureCookie" env:"PORTAL_CSRF_SECURE_COOKIE"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins" env:"PORTAL_CORS_ALLOW_ORIGINS"`
	MaxAge       int      `yaml:"maxAge"`
}

// AdminConfig lists the SHA-256 hex digests of the API keys accepted on the
// cache and analytics endpoints. Keys stored in Postgres are accepted too.
type AdminConfig struct {
	APIKeyHashes []string `yaml:"apiKeyHashes" env:"PORTAL_ADMIN_API_KEY_HASHES"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"PORTAL_REDIS_ADDR"`
	Password  string `yaml:"password" env:"PORTAL_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"PORTAL_REDIS_DB"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// PostgresConfig holds PostgreSQL connection parameters. Form submissions
// are kept in memory when Enabled is false.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled" env:"PORTAL_POSTGRES_ENABLED"`
	Host            string        `yaml:"host" env:"PORTAL_POSTGRES_HOST"`
	Port            int           `yaml:"port" env:"PORTAL_POSTGRES_PORT"`
	Database        string        `yaml:"database" env:"PORTAL_POSTGRES_DATABASE"`
	User            string        `yaml:"user" env:"PORTAL_POSTGRES_USER"`
	Password        string        `yaml:"password" env:"PORTAL_POSTGRES_PASSWORD"`
	SSLMode         string        `yaml:"sslMode" env:"PORTAL_POSTGRES_SSLMODE"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled" env:"PORTAL_KAFKA_ENABLED"`
	Brokers       []string    `yaml:"brokers" env:"PORTAL_KAFKA_BROKERS"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents    string `yaml:"searchEvents"`
	FormSubmissions string `yaml:"formSubmissions"`
}

// AnalyticsConfig sizes the search event buffer and sets how often stats
// snapshots are written to Postgres.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval" env:"PORTAL_ANALYTICS_SNAPSHOT_INTERVAL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"PORTAL_LOGGING_LEVEL"`
	Format string `yaml:"format" env:"PORTAL_LOGGING_FORMAT"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"PORTAL_METRICS_ENABLED"`
	Port    int  `yaml:"port" env:"PORTAL_METRICS_PORT"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
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
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with local-development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Content: ContentConfig{
			DataDir:     "data",
			LoadTimeout: 5 * time.Second,
		},
		Search: SearchConfig{
			CacheBackend:    BackendMemory,
			CacheTTL:        5 * time.Minute,
			DefaultLimit:    10,
			MaxLimit:        50,
			MinQueryLength:  2,
			MaxQueryLength:  100,
			SuggestionLimit: 5,
			MaxSuggestions:  10,
		},
		RateLimit: RateLimitConfig{
			Backend:    BackendMemory,
			Contact:    LimitConfig{MaxAttempts: 3, Window: 15 * time.Minute},
			Newsletter: LimitConfig{MaxAttempts: 5, Window: time.Hour},
			API:        LimitConfig{MaxAttempts: 100, Window: time.Minute},
		},
		CSRF: CSRFConfig{
			MaxAge:     time.Hour,
			CookieName: "session-id",
			Secret:     "default-secret-change-in-production",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
			MaxAge:       86400,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "portal:",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "portal",
			User:            "portal",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "portal-group",
			Topics: KafkaTopics{
				SearchEvents:    "search-events",
				FormSubmissions: "form-submissions",
			},
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be positive"))
	}
	if c.Content.DataDir == "" {
		errs = append(errs, errors.New("content.dataDir is required"))
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.Search.CacheTTL <= 0 {
		errs = append(errs, errors.New("search.cacheTTL must be positive"))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search.defaultLimit must be positive and not exceed search.maxLimit"))
	}
	if c.Search.MinQueryLength <= 0 || c.Search.MaxQueryLength < c.Search.MinQueryLength {
		errs = append(errs, errors.New("search query length bounds are inconsistent"))
	}
	if !validBackend(c.Search.CacheBackend) {
		errs = append(errs, fmt.Errorf("search.cacheBackend %q is not one of memory, redis", c.Search.CacheBackend))
	}
	if !validBackend(c.RateLimit.Backend) {
		errs = append(errs, fmt.Errorf("rateLimit.backend %q is not one of memory, redis", c.RateLimit.Backend))
	}
	for name, l := range map[string]LimitConfig{
		"contact":    c.RateLimit.Contact,
		"newsletter": c.RateLimit.Newsletter,
		"api":        c.RateLimit.API,
	} {
		if l.MaxAttempts <= 0 || l.Window <= 0 {
			errs = append(errs, fmt.Errorf("rateLimit.%s needs positive maxAttempts and window", name))
		}
	}
	if c.CSRF.MaxAge <= 0 {
		errs = append(errs, errors.New("csrf.maxAge must be positive"))
	}
	if strings.TrimSpace(c.CSRF.CookieName) == "" {
		errs = append(errs, errors.New("csrf.cookieName is required"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Analytics.BufferSize <= 0 {
		errs = append(errs, errors.New("analytics.bufferSize must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validBackend(b string) bool {
	return b == BackendMemory || b == BackendRedis
}
