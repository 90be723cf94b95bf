package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/fulfillment-backend/pkg/pubsub"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

const serviceName = "restock-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	var (
		redisClient *redis.Client
		manager     *idempotency.Manager
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "failed to close redis client", err)
			}
		}()
		manager, err = idempotency.NewManager(redisClient, cfg.PubSub.EventIdempotencyTTL)
		requireResource(ctx, logg, "idempotency manager", err)
	} else {
		logg.Warn(ctx, "redis not configured, restock events are not deduplicated")
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.InventorySubscription()
	if subscription == nil {
		requireResource(ctx, logg, "inventory subscription", errors.New("subscription not configured"))
	}

	svc, err := fulfillment.NewFromConfig(cfg.Fulfillment, fulfillment.Dependencies{
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logg,
	})
	requireResource(ctx, logg, "fulfillment service", err)

	params := ConsumerParams{
		Subscription: subscription,
		Fulfillment:  svc,
		Metrics:      metrics.NewWorkerMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	}
	if manager != nil {
		params.Idempotency = manager
	}
	consumer, err := NewConsumer(params)
	requireResource(ctx, logg, "restock consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.InventorySubscription,
	})
	logg.Info(runCtx, "restock worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "restock worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "restock worker stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
