// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Esparramador/comiccrafter-ai-sub001/internal/auth"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/config"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/database"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/logger"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/common/observability"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/notify"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/pipeline"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/providers"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/quota"
	"github.com/Esparramador/comiccrafter-ai-sub001/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting generation service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("generation-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL initialization")
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Redis initialization")
	if err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	// --- Quota layer ---
	subscriptions := quota.NewStore(pg.DB, log)
	cache := quota.NewRedisCache(rdb.Client, time.Duration(cfg.Quota.CacheTTL)*time.Second)
	gate := quota.NewGate(&quota.GateConfig{
		TrialPlanID:    cfg.Quota.TrialPlanID,
		ProvisionTrial: cfg.Quota.ProvisionTrialOnUser,
	}, subscriptions, cache, log)
	recorder := quota.NewRecorder(&quota.RecorderConfig{
		ConflictRetries: cfg.Quota.ConflictRetries,
		ConflictBackoff: time.Duration(cfg.Quota.ConflictBackoff) * time.Millisecond,
	}, subscriptions, cache, log)

	// --- Providers ---
	llm := providers.NewLLMClient(cfg.Providers.Text, log)
	images := providers.NewImageClient(cfg.Providers.Image, log)
	speech := providers.NewTTSClient(cfg.Providers.TTS, log)

	var uploader providers.BlobUploader
	if cfg.Storage.S3.Bucket != "" {
		s3Uploader, err := providers.NewS3BlobUploader(ctx, cfg.Storage)
		if err != nil {
			zapLog.Warn("blob uploads disabled", zap.Error(err))
		} else {
			uploader = s3Uploader
		}
	}

	// --- Pipeline ---
	policy := pipeline.RetryPolicy{
		MaxAttempts: cfg.Pipeline.MaxRetries,
		Timeout:     time.Duration(cfg.Pipeline.CallTimeout) * time.Millisecond,
		BaseBackoff: time.Second,
	}
	plan := pipeline.PlanConfig{
		MinScenes: cfg.Pipeline.MinScenes,
		MaxScenes: cfg.Pipeline.MaxScenes,
	}
	scriptwriter := pipeline.NewScriptwriter(llm, log)
	media := pipeline.NewMediaGenerator(images, speech, policy,
		cfg.Pipeline.ImageConcurrency, cfg.Pipeline.AudioConcurrency, log)
	projects := pipeline.NewProjectStore(pg.DB, log)

	var notifier pipeline.Notifier
	if cfg.Notifications.Email.Enabled {
		emailNotifier, err := notify.NewEmailNotifier(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Warn("email notifier disabled", zap.Error(err))
		} else {
			notifier = emailNotifier
		}
	}

	orchestrator := pipeline.NewOrchestrator(gate, recorder, scriptwriter, media, projects, notifier, policy, plan, obs, log)

	// --- HTTP server ---
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	router := server.NewRouter(server.Deps{
		Tokens:       tokens,
		Gate:         gate,
		Orchestrator: orchestrator,
		Projects:     projects,
		Uploader:     uploader,
		DB:           pg.DB,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
