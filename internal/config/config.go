package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vladimiradmaev/calorie-helper/internal/logger"
)

type Config struct {
	TelegramToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	UserTZ             string        `env:"USER_TZ" envDefault:"Asia/Yekaterinburg"`
	ContinuationWindow time.Duration `env:"CONTINUATION_WINDOW" envDefault:"60m"`
	GoogleDocID        string        `env:"GOOGLE_DOC_ID"`
	GoogleCredentials  string        `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"credentials.json"`
	DocsTimeout        time.Duration `env:"DOCS_TIMEOUT" envDefault:"30s"`
	OtelEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	DB       DBConfig       `envPrefix:"DB_"`
	AI       AIConfig
	State    StateConfig    `envPrefix:"STATE_"`
	Catalog  CatalogConfig  `envPrefix:"CATALOG_SNAPSHOT_"`
	Schedule ScheduleConfig `envPrefix:"SCHEDULE_"`
	Logger   LoggerConfig   `envPrefix:"LOG_"`
}

type DBConfig struct {
	Driver     string `env:"DRIVER" envDefault:"sqlite"`
	Host       string `env:"HOST" envDefault:"localhost"`
	Port       string `env:"PORT" envDefault:"5432"`
	User       string `env:"USER" envDefault:"postgres"`
	Password   string `env:"PASSWORD" envDefault:"postgres"`
	DBName     string `env:"NAME" envDefault:"calorie_helper"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"bot_database.db"`
}

type AIConfig struct {
	GroqAPIKey   string        `env:"GROQ_API_KEY"`
	GroqModel    string        `env:"GROQ_MODEL" envDefault:"llama-3.3-70b-versatile"`
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	Timeout      time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
}

type StateConfig struct {
	Backend       string        `env:"BACKEND" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL           time.Duration `env:"TTL" envDefault:"24h"`
}

type CatalogConfig struct {
	Backend        string `env:"BACKEND" envDefault:"file"`
	Path           string `env:"PATH" envDefault:"initial_products.json"`
	Bucket         string `env:"BUCKET"`
	Key            string `env:"KEY" envDefault:"initial_products.json"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type ScheduleConfig struct {
	Sync        string `env:"SYNC" envDefault:"55 23 * * *"`
	Verify      string `env:"VERIFY" envDefault:"@weekly"`
	VerifyBatch int    `env:"VERIFY_BATCH" envDefault:"5"`
}

type LoggerConfig struct {
	LevelName  string `env:"LEVEL" envDefault:"info"`
	OutputPath string `env:"OUTPUT" envDefault:"stdout"`
	Format     string `env:"FORMAT" envDefault:"json"`
}

// Level converts the configured level name
func (l LoggerConfig) Level() logger.LogLevel {
	return logger.ParseLevel(l.LevelName)
}

// Location loads the configured user time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.UserTZ)
}

// PostgresDSN builds the connection string for the postgres driver
func (d DBConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName)
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values required to start the bot
func (c *Config) Validate() error {
	var problems []string

	if c.TelegramToken == "" {
		problems = append(problems, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.AI.GroqAPIKey == "" && c.AI.GeminiAPIKey == "" {
		problems = append(problems, "GROQ_API_KEY or GEMINI_API_KEY is required")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("USER_TZ: %v", err))
	}
	if c.ContinuationWindow <= 0 {
		problems = append(problems, "CONTINUATION_WINDOW must be positive")
	}
	if c.DocsTimeout <= 0 {
		problems = append(problems, "DOCS_TIMEOUT must be positive")
	}

	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER %q is not supported", c.DB.Driver))
	}

	switch c.State.Backend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("STATE_BACKEND %q is not supported", c.State.Backend))
	}

	switch c.Catalog.Backend {
	case "file":
	case "s3", "minio":
		if c.Catalog.Bucket == "" {
			problems = append(problems, "CATALOG_SNAPSHOT_BUCKET is required for object storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("CATALOG_SNAPSHOT_BACKEND %q is not supported", c.Catalog.Backend))
	}

	if c.Schedule.VerifyBatch <= 0 {
		problems = append(problems, "SCHEDULE_VERIFY_BATCH must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Mask hides all but the first and last characters of a secret
func Mask(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
