package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envProduction = "production"

// Config aggregates runtime configuration for doorman and manager.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token and password parameters.
type AuthConfig struct {
	JWTSecret string
	// AllowDefaultSecret lets an empty JWTSecret fall back to the built-in
	// development secret. Refused when App.Env is production.
	AllowDefaultSecret     bool
	TokenExpirationSeconds int
	BcryptCost             int
}

// GatewayConfig configures the manager's upstream and response cache.
type GatewayConfig struct {
	UpstreamURL string
	CachePaths  []string
	// PrivateCachePaths are cached once per principal.
	PrivateCachePaths []string
	CacheTTLSeconds   int
	CachePrefix       string
}

// Load reads configuration from environment variables, applying defaults where possible.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var p envParser
	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "doorman"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: p.getInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       p.getInt32("POSTGRES_MAX_CONNS", 10),
			MinConns:       p.getInt32("POSTGRES_MIN_CONNS", 2),
			RunMigrations:  p.getBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: p.getInt32("POSTGRES_CONN_MAX_IDLE_SECONDS", 30),
			ConnMaxLifeSec: p.getInt32("POSTGRES_CONN_MAX_LIFE_SECONDS", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.getInt("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              os.Getenv("AUTH_JWT_SECRET"),
			AllowDefaultSecret:     p.getBool("AUTH_ALLOW_DEFAULT_SECRET", false),
			TokenExpirationSeconds: p.getInt("AUTH_TOKEN_EXPIRATION_SECONDS", 3600),
			BcryptCost:             p.getInt("AUTH_BCRYPT_COST", 12),
		},
		Gateway: GatewayConfig{
			UpstreamURL:       getEnv("GATEWAY_UPSTREAM_URL", "http://127.0.0.1:8090"),
			CachePaths:        getEnvAsList("GATEWAY_CACHE_PATHS", []string{"/fibonacci/term", "/bees/ancestors", "/bees/descendants"}),
			PrivateCachePaths: getEnvAsList("GATEWAY_PRIVATE_CACHE_PATHS", nil),
			CacheTTLSeconds:   p.getInt("GATEWAY_CACHE_TTL_SECONDS", 300),
			CachePrefix:       getEnv("GATEWAY_CACHE_PREFIX", "manager:cache"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces rules that span several settings.
func (c *Config) Validate() error {
	if c.Auth.TokenExpirationSeconds <= 0 {
		return fmt.Errorf("AUTH_TOKEN_EXPIRATION_SECONDS must be positive, got %d", c.Auth.TokenExpirationSeconds)
	}
	if c.App.IsProduction() {
		if c.Auth.AllowDefaultSecret {
			return errors.New("AUTH_ALLOW_DEFAULT_SECRET is not permitted in production")
		}
		if c.Auth.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required in production")
		}
	}
	if c.Gateway.CacheTTLSeconds < 0 {
		return fmt.Errorf("GATEWAY_CACHE_TTL_SECONDS must not be negative, got %d", c.Gateway.CacheTTLSeconds)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, envProduction)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns how long archived responses live. Zero means no expiry.
func (g GatewayConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envParser keeps the first malformed value it sees.
type envParser struct {
	err error
}

func (p *envParser) getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return parsed
}

func (p *envParser) getInt32(key string, fallback int32) int32 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return int32(parsed)
}

func (p *envParser) getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return parsed
}

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
