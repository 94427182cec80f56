package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vladimiradmaev/calorie-helper/internal/config"
)

func main() {
	fmt.Println("🔍 Проверка конфигурации...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  .env файл не найден: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Ошибка загрузки конфигурации:\n%v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Ошибка валидации конфигурации:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Конфигурация валидна!")
	fmt.Printf("📋 Детали конфигурации:\n")
	fmt.Printf("  - Telegram Token: %s\n", config.Mask(cfg.TelegramToken))
	fmt.Printf("  - Groq API Key: %s (%s)\n", config.Mask(cfg.AI.GroqAPIKey), cfg.AI.GroqModel)
	fmt.Printf("  - Gemini API Key: %s (%s)\n", config.Mask(cfg.AI.GeminiAPIKey), cfg.AI.GeminiModel)
	fmt.Printf("  - User TZ: %s\n", cfg.UserTZ)
	fmt.Printf("  - Continuation window: %s\n", cfg.ContinuationWindow)
	fmt.Printf("  - DB Driver: %s\n", cfg.DB.Driver)
	if cfg.DB.Driver == "postgres" {
		fmt.Printf("  - DB Host: %s:%s\n", cfg.DB.Host, cfg.DB.Port)
		fmt.Printf("  - DB User: %s\n", cfg.DB.User)
		fmt.Printf("  - DB Password: %s\n", config.Mask(cfg.DB.Password))
		fmt.Printf("  - DB Name: %s\n", cfg.DB.DBName)
	} else {
		fmt.Printf("  - SQLite Path: %s\n", cfg.DB.SQLitePath)
	}
	fmt.Printf("  - State Backend: %s\n", cfg.State.Backend)
	fmt.Printf("  - Catalog Snapshot: %s\n", cfg.Catalog.Backend)
	if cfg.Catalog.Backend == "minio" {
		fmt.Printf("  - MinIO: %s, key %s\n", cfg.Catalog.MinioEndpoint, config.Mask(cfg.Catalog.MinioAccessKey))
	}
	if cfg.GoogleDocID != "" {
		fmt.Printf("  - Google Doc: %s (timeout %s)\n", cfg.GoogleDocID, cfg.DocsTimeout)
	} else {
		fmt.Printf("  - Google Doc: <не установлен>\n")
	}
	fmt.Printf("  - Schedule: sync %q, verify %q (batch %d)\n", cfg.Schedule.Sync, cfg.Schedule.Verify, cfg.Schedule.VerifyBatch)
	fmt.Printf("  - OTLP Endpoint: %s\n", cfg.OtelEndpoint)
	fmt.Printf("  - Log Level: %s\n", cfg.Logger.Level())
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)
}
