package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/instance"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/notify"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/kirana-backend/pkg/outbox/registry"
	"github.com/angelmondragon/kirana-backend/pkg/pubsub"
	"github.com/angelmondragon/kirana-backend/pkg/redis"
)

const consumerName = "change-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	decoders := registry.NewDefaultDecoderRegistry()
	var subscribers notify.Fanout
	for _, sub := range []struct {
		name   string
		source *gcppubsub.Subscriber
	}{
		{name: "cart", source: pubsubClient.CartSubscription()},
		{name: "orders", source: pubsubClient.OrdersSubscription()},
		{name: "customer", source: pubsubClient.CustomerSubscription()},
	} {
		if sub.source == nil {
			logg.Warn(logg.WithField(ctx, "subscription", sub.name), "subscription not configured, skipping")
			continue
		}
		subscriber, err := notify.NewPubSubSubscriber(notify.PubSubParams{
			Consumer:     consumerName,
			Subscription: sub.source,
			Decoders:     decoders,
			Idempotency:  manager,
			Logger:       logg,
		})
		requireResource(ctx, logg, fmt.Sprintf("%s subscriber", sub.name), err)
		subscribers = append(subscribers, subscriber)
	}

	reconciler, err := cart.NewReconciler(
		cart.NewRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		cfg.Eventing.PublishCartEvents,
	)
	requireResource(ctx, logg, "cart reconciler", err)

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		PubSub:     pubsubClient,
		Subscriber: subscribers,
		Handler:    newRouter(logg, reconciler).Dispatch,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(cfg.Service.Kind),
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
