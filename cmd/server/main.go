package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"algoforge/internal/api"
	"algoforge/internal/app/service"
	"algoforge/internal/app/worker"
	"algoforge/internal/common/security"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/cache"
	"algoforge/internal/platform/config"
	"algoforge/internal/platform/database"
	"algoforge/internal/platform/logger"
	"algoforge/internal/platform/markdown"
	"algoforge/internal/platform/queue"
)

func main() {
	// 1. Configuration
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg := config.AppConfig

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer appLog.Sync()

	// 2. JWT
	security.InitJWT(cfg.JWTKey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database
	if err := database.Connect(ctx); err != nil {
		appLog.Fatal("database connect failed", "error", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx, database.DB); err != nil {
		appLog.Fatal("schema bootstrap failed", "error", err)
	}
	appLog.Info("database connected")

	// 4. Redis
	if err := queue.ConnectRedis(ctx); err != nil {
		appLog.Fatal("redis connect failed", "error", err)
	}
	defer queue.CloseRedis()
	appLog.Info("redis connected")

	// 5. Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	contentRepo := repository.NewPgContentRepository(database.DB)
	progressRepo := repository.NewPgProgressRepository(database.DB)
	forumRepo := repository.NewPgForumRepository(database.DB)

	contentCache := cache.NewRedisCache(queue.RDB, cfg.ContentCacheTTL)
	board := cache.NewRedisLeaderboard(queue.RDB, cfg.LeaderboardKey)

	var verifier security.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier, err = security.NewGoogleVerifier(&http.Client{Timeout: 10 * time.Second}, cfg.GoogleClientID)
		if err != nil {
			appLog.Fatal("google verifier setup failed", "error", err)
		}
	} else {
		appLog.Warn("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	// 6. Services
	activityService := service.NewActivityService(queue.RDB, cfg.ActivityQueueName, appLog)
	authService := service.NewAuthService(userRepo, progressRepo, verifier, activityService, appLog)
	contentService := service.NewContentService(contentRepo, contentCache, appLog)
	userActionService := service.NewUserActionService(progressRepo, contentRepo, activityService, appLog)
	forumService := service.NewForumService(forumRepo, userRepo, markdown.NewRenderer(), activityService, appLog)
	leaderboardService := service.NewLeaderboardService(board, userRepo, appLog)
	adminService := service.NewAdminService(userRepo, contentRepo, appLog)

	if _, err := leaderboardService.Rebuild(ctx); err != nil {
		appLog.Warn("leaderboard rebuild failed", "error", err)
	}

	// 7. Background jobs
	activityWorker := worker.NewActivityWorker(
		queue.RDB,
		cfg.ActivityQueueName,
		time.Duration(cfg.ActivityLockTTLSeconds)*time.Second,
		userRepo,
		board,
		appLog,
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		activityWorker.Start(workerCtx)
	}()
	if cfg.LeaderboardRebuild > 0 {
		go rebuildPeriodically(workerCtx, leaderboardService, cfg.LeaderboardRebuild, appLog)
	}

	// 8. Router & HTTP server
	router := api.NewRouter(
		api.RouterConfig{CORSOrigins: cfg.CORSOrigins, RequestTimeout: cfg.RequestTimeout},
		appLog,
		authService,
		contentService,
		userActionService,
		forumService,
		leaderboardService,
		adminService,
	)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("listen failed", "port", cfg.APIPort, "error", err)
		}
	}()

	// 9. Graceful shutdown
	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown failed", "error", err)
	}

	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		appLog.Warn("activity worker did not stop in time")
	}
	appLog.Info("server and worker stopped")
}

// rebuildPeriodically resets the leaderboard projection from users.xp every
// interval until ctx is cancelled.
func rebuildPeriodically(ctx context.Context, leaderboard *service.LeaderboardService, interval time.Duration, appLog *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := leaderboard.Rebuild(ctx); err != nil {
				appLog.Warn("periodic leaderboard rebuild failed", "error", err)
			}
		}
	}
}
