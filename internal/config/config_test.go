package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "doorman", cfg.App.Name)
				assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
				assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
				assert.Empty(t, cfg.Auth.JWTSecret)
				assert.False(t, cfg.Auth.AllowDefaultSecret)
				assert.Equal(t, 3600, cfg.Auth.TokenExpirationSeconds)
				assert.Equal(t, 12, cfg.Auth.BcryptCost)
				assert.Equal(t, []string{"/fibonacci/term", "/bees/ancestors", "/bees/descendants"}, cfg.Gateway.CachePaths)
				assert.Equal(t, 5*time.Minute, cfg.Gateway.CacheTTL())
				assert.Empty(t, cfg.Gateway.PrivateCachePaths)
				assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
				assert.True(t, cfg.Postgres.RunMigrations)
			},
		},
		{
			name: "explicit auth settings",
			envVars: map[string]string{
				"AUTH_JWT_SECRET":               "s3cr3t",
				"AUTH_TOKEN_EXPIRATION_SECONDS": "60",
				"AUTH_ALLOW_DEFAULT_SECRET":     "true",
				"GATEWAY_CACHE_PATHS":           " /a, ,/b ",
				"HTTP_REQUEST_TIMEOUT_SECONDS":  "0",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "s3cr3t", cfg.Auth.JWTSecret)
				assert.Equal(t, 60, cfg.Auth.TokenExpirationSeconds)
				assert.True(t, cfg.Auth.AllowDefaultSecret)
				assert.Equal(t, []string{"/a", "/b"}, cfg.Gateway.CachePaths)
				assert.Equal(t, []string{"/me/summary"}, cfg.Gateway.PrivateCachePaths)
				assert.Zero(t, cfg.App.RequestTimeout())
			},
		},
		{
			name:    "malformed integer",
			envVars: map[string]string{"AUTH_TOKEN_EXPIRATION_SECONDS": "sixty"},
			wantErr: "invalid AUTH_TOKEN_EXPIRATION_SECONDS",
		},
		{
			name:    "pool size beyond int32",
			envVars: map[string]string{"POSTGRES_MAX_CONNS": "4294967306"},
			wantErr: "invalid POSTGRES_MAX_CONNS",
		},
		{
			name:    "negative lifetime beyond int32",
			envVars: map[string]string{"POSTGRES_CONN_MAX_LIFE_SECONDS": "-2147483649"},
			wantErr: "invalid POSTGRES_CONN_MAX_LIFE_SECONDS",
		},
		{
			name:    "pool size at int32 limit",
			envVars: map[string]string{"POSTGRES_MAX_CONNS": "2147483647"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, int32(2147483647), cfg.Postgres.MaxConns)
			},
		},
		{
			name:    "malformed bool",
			envVars: map[string]string{"AUTH_ALLOW_DEFAULT_SECRET": "sure"},
			wantErr: "invalid AUTH_ALLOW_DEFAULT_SECRET",
		},
		{
			name:    "non-positive expiration",
			envVars: map[string]string{"AUTH_TOKEN_EXPIRATION_SECONDS": "0"},
			wantErr: "must be positive",
		},
		{
			name:    "production refuses default secret",
			envVars: map[string]string{"APP_ENV": "production", "AUTH_JWT_SECRET": "x", "AUTH_ALLOW_DEFAULT_SECRET": "true"},
			wantErr: "not permitted in production",
		},
		{
			name:    "production requires secret",
			envVars: map[string]string{"APP_ENV": "Production"},
			wantErr: "AUTH_JWT_SECRET is required",
		},
		{
			name:    "production with secret",
			envVars: map[string]string{"APP_ENV": "production", "AUTH_JWT_SECRET": "prod-secret"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.App.IsProduction())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

// clearEnv blanks every variable Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "APP_HOST", "APP_PORT", "APP_VERSION", "HTTP_REQUEST_TIMEOUT_SECONDS",
		"POSTGRES_DSN", "POSTGRES_MAX_CONNS", "POSTGRES_MIN_CONNS", "POSTGRES_RUN_MIGRATIONS",
		"POSTGRES_CONN_MAX_IDLE_SECONDS", "POSTGRES_CONN_MAX_LIFE_SECONDS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL",
		"AUTH_JWT_SECRET", "AUTH_ALLOW_DEFAULT_SECRET", "AUTH_TOKEN_EXPIRATION_SECONDS", "AUTH_BCRYPT_COST",
		"GATEWAY_UPSTREAM_URL", "GATEWAY_CACHE_PATHS", "GATEWAY_PRIVATE_CACHE_PATHS", "GATEWAY_CACHE_TTL_SECONDS", "GATEWAY_CACHE_PREFIX",
	} {
		t.Setenv(key, "")
	}
}
