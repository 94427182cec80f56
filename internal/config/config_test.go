package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Yekaterinburg", cfg.UserTZ)
	assert.Equal(t, 60*time.Minute, cfg.ContinuationWindow)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "bot_database.db", cfg.DB.SQLitePath)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.AI.GroqModel)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 30*time.Second, cfg.DocsTimeout)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, 24*time.Hour, cfg.State.TTL)
	assert.Equal(t, "file", cfg.Catalog.Backend)
	assert.Equal(t, "initial_products.json", cfg.Catalog.Path)
	assert.Equal(t, "55 23 * * *", cfg.Schedule.Sync)
	assert.Equal(t, "@weekly", cfg.Schedule.Verify)
	assert.Equal(t, 5, cfg.Schedule.VerifyBatch)
	assert.Equal(t, logger.LevelInfo, cfg.Logger.Level())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*Config)
	}{
		{
			name: "database",
			envVars: map[string]string{
				"DB_DRIVER":   "postgres",
				"DB_HOST":     "db",
				"DB_NAME":     "food",
				"DB_PASSWORD": "secret",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, "postgres", cfg.DB.Driver)
				assert.Equal(t, "host=db port=5432 user=postgres password=secret dbname=food sslmode=disable", cfg.DB.PostgresDSN())
			},
		},
		{
			name: "oracles",
			envVars: map[string]string{
				"GROQ_API_KEY": "gsk_test",
				"AI_TIMEOUT":   "5s",
				"DOCS_TIMEOUT": "10s",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, "gsk_test", cfg.AI.GroqAPIKey)
				assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
				assert.Equal(t, 10*time.Second, cfg.DocsTimeout)
			},
		},
		{
			name: "state and catalog",
			envVars: map[string]string{
				"STATE_BACKEND":            "redis",
				"STATE_REDIS_ADDR":         "redis:6379",
				"CATALOG_SNAPSHOT_BACKEND": "minio",
				"CATALOG_SNAPSHOT_BUCKET":  "catalog",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, "redis", cfg.State.Backend)
				assert.Equal(t, "redis:6379", cfg.State.RedisAddr)
				assert.Equal(t, "minio", cfg.Catalog.Backend)
				assert.Equal(t, "catalog", cfg.Catalog.Bucket)
			},
		},
		{
			name: "logger",
			envVars: map[string]string{
				"LOG_LEVEL":  "debug",
				"LOG_FORMAT": "text",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, logger.LevelDebug, cfg.Logger.Level())
				assert.Equal(t, "text", cfg.Logger.Format)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			tt.expected(cfg)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CONTINUATION_WINDOW", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		t.Setenv("GEMINI_API_KEY", "key")
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := valid()
		cfg.TelegramToken = ""
		assert.ErrorContains(t, cfg.Validate(), "TELEGRAM_BOT_TOKEN")
	})

	t.Run("unknown time zone", func(t *testing.T) {
		cfg := valid()
		cfg.UserTZ = "Mars/Olympus"
		assert.ErrorContains(t, cfg.Validate(), "USER_TZ")
	})

	t.Run("zero docs timeout", func(t *testing.T) {
		cfg := valid()
		cfg.DocsTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "DOCS_TIMEOUT")
	})

	t.Run("object storage without bucket", func(t *testing.T) {
		cfg := valid()
		cfg.Catalog.Backend = "s3"
		assert.ErrorContains(t, cfg.Validate(), "CATALOG_SNAPSHOT_BUCKET")
	})
}

func TestMask(t *testing.T) {
	assert.Equal(t, "<empty>", Mask(""))
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "1234****cdef", Mask("1234567890abcdef"))
}
