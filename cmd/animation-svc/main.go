// Package main 动画生成 API 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/application/animation"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/llm"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/messaging"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/persistence/postgres"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/persistence/redis"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/interfaces/http/handler"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/interfaces/http/router"
	einoobs "github.com/MRenAIAgent/math-content-engine-sub001/internal/observability/eino"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/logger"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting animation-svc",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（模型调用追踪）
	einoobs.Init()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	jobRepo := postgres.NewRenderJobRepository(pgClient)
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	cache := redis.NewCache(redisClient)
	limiter := redis.NewRateLimiter(redisClient)

	factory := llm.NewEinoFactory(cfg)
	generator := animation.NewSceneGenerator(factory)
	renderer := animation.NewManimRenderer(&cfg.Renderer)
	orchestrator := animation.NewOrchestrator(generator, renderer, &cfg.Pipeline)
	svc := animation.NewService(orchestrator, jobRepo, producer, cache,
		&cfg.Features.ResultCache, &cfg.Pipeline)

	r := router.New(cfg, router.Dependencies{
		Health:    handler.NewHealthHandler(pgClient, redisClient),
		Animation: handler.NewAnimationHandler(svc, cfg),
		Limiter:   limiter,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
