package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/calorie-helper/internal/bot"
	"github.com/vladimiradmaev/calorie-helper/internal/bot/handlers"
	"github.com/vladimiradmaev/calorie-helper/internal/bot/state"
	"github.com/vladimiradmaev/calorie-helper/internal/catalog"
	"github.com/vladimiradmaev/calorie-helper/internal/config"
	"github.com/vladimiradmaev/calorie-helper/internal/conversation"
	"github.com/vladimiradmaev/calorie-helper/internal/database"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
	"github.com/vladimiradmaev/calorie-helper/internal/logger"
	"github.com/vladimiradmaev/calorie-helper/internal/repository"
	"github.com/vladimiradmaev/calorie-helper/internal/scheduler"
	"github.com/vladimiradmaev/calorie-helper/internal/services"
	"github.com/vladimiradmaev/calorie-helper/internal/telemetry"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration is invalid", "error", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level(),
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		logger.Fatal("Failed to initialize logger", "error", err)
	}
	logger.Info("Starting Calorie Helper Bot", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("Bot stopped with error", "error", err)
	}
	logger.Info("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OtelEndpoint, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	repo := repository.New(db)

	snapshot, err := openSnapshot(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	products := catalog.NewService(repo, snapshot)
	if seeded, err := products.SeedIfEmpty(ctx); err != nil {
		logger.Warn("Catalog seeding failed", "error", err)
	} else if seeded > 0 {
		logger.Info("Catalog seeded from snapshot", "products", seeded, "backend", snapshot.Name())
	}

	aiService, err := services.NewAIService(ctx, cfg.AI)
	if err != nil {
		return err
	}
	resolver := services.NewCalorieResolver(products, aiService)
	foodLog := services.NewFoodLogService(repo, aiService, resolver, loc)
	editService := services.NewEditService(repo, products, loc)
	userService := services.NewUserService(repo)
	verification := services.NewVerificationService(repo, aiService, cfg.Schedule.VerifyBatch)

	var docsSync domain.DocumentSync
	if cfg.GoogleDocID != "" {
		docsService, err := services.NewGoogleDocsService(ctx, cfg.GoogleCredentials)
		if err != nil {
			logger.Warn("Google Docs sync disabled", "error", err)
		} else {
			docsSync = docsService
		}
	}
	syncService := services.NewSyncService(repo, docsSync, cfg.GoogleDocID, loc, cfg.DocsTimeout)

	store, closeStore, err := openStateStore(cfg.State)
	if err != nil {
		return err
	}
	defer closeStore()

	controller := conversation.NewController(conversation.Deps{
		Store:    store,
		FoodLog:  foodLog,
		Editor:   editService,
		Catalog:  products,
		Syncer:   syncService,
		Location: loc,
		Window:   cfg.ContinuationWindow,
	})

	telegramBot, err := bot.NewBot(cfg.TelegramToken, handlers.Dependencies{
		UserService:  userService,
		Conversation: controller,
	})
	if err != nil {
		return err
	}

	var daySyncer scheduler.DaySyncer
	if syncService.Enabled() {
		daySyncer = syncService
	}
	jobs, err := scheduler.New(cfg.Schedule, loc, daySyncer, verification)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return telegramBot.Start(gctx) })
	g.Go(func() error { return jobs.Run(gctx) })

	logger.Info("Bot is running. Press Ctrl+C to stop.")
	return g.Wait()
}

func openSnapshot(ctx context.Context, cfg config.CatalogConfig) (catalog.Snapshot, error) {
	switch cfg.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return catalog.NewS3Snapshot(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Key), nil
	case "minio":
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}
		return catalog.NewMinioSnapshot(ctx, client, cfg.Bucket, cfg.Key)
	default:
		return catalog.NewFileSnapshot(cfg.Path), nil
	}
}

func openStateStore(cfg config.StateConfig) (state.Store, func(), error) {
	if cfg.Backend != "redis" {
		return state.NewManager(), func() {}, nil
	}
	manager, err := state.NewRedisManager(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Conversation context stored in Redis", "addr", cfg.RedisAddr)
	return manager, func() {
		if err := manager.Close(); err != nil {
			logger.Warn("Failed to close Redis", "error", err)
		}
	}, nil
}
