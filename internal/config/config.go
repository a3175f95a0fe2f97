package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Issuer        IssuerConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Retention     RetentionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional Redis connection used by the
// redis rate-limiter backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IssuerConfig holds token issuance policy. All policy is explicit
// configuration injected at startup; nothing is read from ambient globals.
type IssuerConfig struct {
	MasterSecret        string
	DefaultTokenTTL     time.Duration
	TokenFormatVersion  int
	CredentialTTL       time.Duration
	MaxTenantsPerOwner  int
	TenantCacheTTL      time.Duration
	DefaultRateLimit    int
	RateLimitWindow     time.Duration
	RateLimitBackend    string // postgres, redis
	RateLimitGranularity time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	AdminCredential   string
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// RateLimitConfig holds the transport-level per-IP limiter configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// RetentionConfig bounds how long operational records are kept
type RetentionConfig struct {
	TokenLog    time.Duration
	AuditEvents time.Duration
}

// Load loads configuration from environment variables.
// A local .env file is honoured when present (development convenience).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "ghostgate"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "ghostgate"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
		},
		Issuer: IssuerConfig{
			MasterSecret:         getEnv("ISSUER_MASTER_SECRET", ""),
			DefaultTokenTTL:      parseDuration("ISSUER_DEFAULT_TOKEN_TTL", "15m"),
			TokenFormatVersion:   parseInt("ISSUER_TOKEN_FORMAT_VERSION", 1),
			CredentialTTL:        parseDuration("ISSUER_CREDENTIAL_TTL", "24h"),
			MaxTenantsPerOwner:   parseInt("ISSUER_MAX_TENANTS_PER_OWNER", 10),
			TenantCacheTTL:       parseDuration("ISSUER_TENANT_CACHE_TTL", "1m"),
			DefaultRateLimit:     parseInt("ISSUER_DEFAULT_RATE_LIMIT", 100),
			RateLimitWindow:      parseDuration("ISSUER_RATE_LIMIT_WINDOW", "1h"),
			RateLimitBackend:     getEnv("ISSUER_RATE_LIMIT_BACKEND", "postgres"),
			RateLimitGranularity: parseDuration("ISSUER_RATE_LIMIT_GRANULARITY", "1m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ghostgate"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			AdminCredential:   getEnv("ADMIN_CREDENTIAL", ""),
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Retention: RetentionConfig{
			TokenLog:    parseDuration("RETENTION_TOKEN_LOG", "720h"),
			AuditEvents: parseDuration("RETENTION_AUDIT_EVENTS", "2160h"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Issuer.MasterSecret == "" {
		return fmt.Errorf("ISSUER_MASTER_SECRET is required")
	}
	if len(c.Issuer.MasterSecret) < 32 {
		return fmt.Errorf("ISSUER_MASTER_SECRET must be at least 32 bytes")
	}
	if c.Issuer.RateLimitBackend != "postgres" && c.Issuer.RateLimitBackend != "redis" {
		return fmt.Errorf("ISSUER_RATE_LIMIT_BACKEND must be postgres or redis")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
