// Package main 渲染执行器入口（render-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/semaphore"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/application/animation"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/llm"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/messaging"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/persistence/postgres"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/persistence/redis"
	einoobs "github.com/MRenAIAgent/math-content-engine-sub001/internal/observability/eino"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/logger"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/metrics"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "render-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

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

	factory := llm.NewEinoFactory(cfg)
	generator := animation.NewSceneGenerator(factory)
	renderer := animation.NewManimRenderer(&cfg.Renderer)
	orchestrator := animation.NewOrchestrator(generator, renderer, &cfg.Pipeline)
	svc := animation.NewService(orchestrator, jobRepo, producer, nil, nil, &cfg.Pipeline)

	// 渲染吃 CPU，信号量限制同时在跑的管线数量
	maxConcurrent := cfg.Pipeline.MaxConcurrentRenders
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamAnimationRender,
		Group:         messaging.ConsumerGroupRenderWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MessageTypeRenderJob, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.RenderJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		if err := sem.Acquire(msgCtx, 1); err != nil {
			return err
		}
		defer sem.Release(1)

		metrics.ActiveRenders.Inc()
		defer metrics.ActiveRenders.Dec()

		return svc.ProcessJob(msgCtx, &payload)
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	go consumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("render-worker started", "max_concurrent_renders", maxConcurrent)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("render-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
