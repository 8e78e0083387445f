package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mianhamzaathar/AIFORGE/internal/analytics/router"
	"github.com/mianhamzaathar/AIFORGE/internal/analytics/types"
	"github.com/mianhamzaathar/AIFORGE/internal/analytics/worker"
	"github.com/mianhamzaathar/AIFORGE/internal/analytics/writer"
	"github.com/mianhamzaathar/AIFORGE/pkg/bigquery"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/idempotency"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/registry"
	"github.com/mianhamzaathar/AIFORGE/pkg/pubsub"
	"github.com/mianhamzaathar/AIFORGE/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Consuming, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, bigquery.UsageTable{
		Schema:         types.UsageSchema,
		PartitionField: types.UsagePartitionField,
	}, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	subscription := pubsubClient.LedgerSubscriber()
	if subscription == nil {
		requireResource(ctx, logg, "ledger subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	usageWriter, err := writer.New(bqClient, writer.Config{})
	requireResource(ctx, logg, "usage bigquery writer", err)

	routingHandler, err := router.NewRouter(usageWriter, registry.NewDecoderRegistry(), logg, nil)
	requireResource(ctx, logg, "analytics router", err)

	service, err := worker.NewService(subscription, routingHandler, manager, logg)
	requireResource(ctx, logg, "analytics worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"table":       cfg.BigQuery.UsageTable,
	})
	logg.Info(runCtx, "analytics worker ready")

	runErr := service.Run(runCtx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := usageWriter.Flush(flushCtx); err != nil {
		logg.Error(flushCtx, "failed to flush usage rows", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", runErr)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
