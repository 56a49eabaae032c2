package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/newsroom/internal/api"
	"github.com/bilgisen/newsroom/internal/articles"
	"github.com/bilgisen/newsroom/internal/cache"
	"github.com/bilgisen/newsroom/internal/config"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/middleware"
	"github.com/bilgisen/newsroom/internal/store"
	"github.com/bilgisen/newsroom/internal/upload"
	"github.com/gofiber/fiber/v2"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: !cfg.IsProduction() && cfg.LogFile == "",
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Msg("Starting application...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Options{
		Driver:          cfg.StoreDriver,
		Path:            cfg.StoragePath,
		RedisURL:        cfg.RedisURL,
		RedisPrefix:     cfg.RedisPrefix,
		BadgerPath:      cfg.BadgerPath,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open store")
	}

	if cfg.CacheEnabled && !cfg.ArticleCacheEnabled() {
		log.Info().Msg("Redis store in use, skipping the article cache")
	}
	if cfg.ArticleCacheEnabled() {
		var c cache.Cache = cache.NewMemoryCache()
		if cfg.CacheDriver == config.CacheRedis {
			c, err = cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPrefix)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize Redis cache")
			}
		}
		st = cache.NewCachedStore(st, c, cfg.CacheTTL)
		log.Info().Str("driver", cfg.CacheDriver).Dur("ttl", cfg.CacheTTL).Msg("Article cache enabled")
	}
	defer func() {
		log.Info().Msg("Closing store...")
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing store")
		}
	}()

	var (
		uploads   upload.Storage
		uploadDir string
	)
	switch cfg.UploadDriver {
	case config.UploadS3:
		uploads, err = upload.NewS3(ctx, upload.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
			KeyPrefix: "covers",
		})
	default:
		var local *upload.Local
		local, err = upload.NewLocal(cfg.UploadDir)
		if err == nil {
			uploads, uploadDir = local, local.Dir()
		}
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.UploadDriver).Msg("Failed to initialize upload storage")
	}

	svc := articles.NewService(st, uploads, articles.WithMaxFileSize(cfg.MaxFileSize))

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		// room for the form fields next to the largest allowed cover
		BodyLimit:    int(cfg.MaxFileSize) + 1<<20,
		ErrorHandler: middleware.ErrorHandler,
	})

	api.SetupRoutes(app, api.NewHandlers(svc), api.RouteConfig{
		AuthToken: cfg.AuthToken,
		UploadDir: uploadDir,
	})
	if cfg.AuthToken == "" {
		log.Warn().Msg("AUTH_TOKEN is empty, news endpoints are unauthenticated")
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("uploads", cfg.UploadDriver).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
