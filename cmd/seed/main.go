package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"algoforge/internal/app/seed"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/cache"
	"algoforge/internal/platform/config"
	"algoforge/internal/platform/database"
	"algoforge/internal/platform/logger"
	"algoforge/internal/platform/queue"
)

func main() {
	file := flag.String("file", "data/catalog.yaml", "catalog YAML file")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	appLog, err := logger.New(config.AppConfig.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer appLog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	f, err := os.Open(*file)
	if err != nil {
		appLog.Fatal("open catalog failed", "file", *file, "error", err)
	}
	catalog, err := seed.Parse(f)
	f.Close()
	if err != nil {
		appLog.Fatal("invalid catalog", "file", *file, "error", err)
	}

	if err := database.Connect(ctx); err != nil {
		appLog.Fatal("database connect failed", "error", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx, database.DB); err != nil {
		appLog.Fatal("schema bootstrap failed", "error", err)
	}

	res, err := seed.Apply(ctx,
		repository.NewPgContentRepository(database.DB),
		repository.NewPgUserRepository(database.DB),
		catalog, appLog)
	if err != nil {
		appLog.Fatal("seed failed", "error", err)
	}
	appLog.Info("catalog seeded", "paths", res.Paths, "topics", res.Topics, "problems", res.Problems, "admins", res.Admins)

	// Cached catalog reads would otherwise serve the old content until TTL.
	if err := queue.ConnectRedis(ctx); err != nil {
		appLog.Warn("redis unavailable, content cache not invalidated", "error", err)
		return
	}
	defer queue.CloseRedis()
	if err := cache.NewRedisCache(queue.RDB, config.AppConfig.ContentCacheTTL).Invalidate(ctx); err != nil {
		appLog.Warn("content cache invalidation failed", "error", err)
	}
}
