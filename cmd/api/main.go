package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/kirana-backend/api/routes"
	"github.com/angelmondragon/kirana-backend/internal/address"
	"github.com/angelmondragon/kirana-backend/internal/auth"
	"github.com/angelmondragon/kirana-backend/internal/cart"
	"github.com/angelmondragon/kirana-backend/internal/catalog"
	"github.com/angelmondragon/kirana-backend/internal/checkout"
	"github.com/angelmondragon/kirana-backend/internal/customers"
	"github.com/angelmondragon/kirana-backend/internal/orders"
	"github.com/angelmondragon/kirana-backend/pkg/auth/session"
	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/db"
	"github.com/angelmondragon/kirana-backend/pkg/logger"
	"github.com/angelmondragon/kirana-backend/pkg/metrics"
	"github.com/angelmondragon/kirana-backend/pkg/migrate"
	"github.com/angelmondragon/kirana-backend/pkg/outbox"
	"github.com/angelmondragon/kirana-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	revocations, err := session.NewRevocations(redisClient)
	requireResource(ctx, logg, "token revocations", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(reg)

	services, err := buildServices(cfg, logg, dbClient, redisClient, revocations, cartMetrics)
	requireResource(ctx, logg, "services", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, revocations, reg, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	logg.Info(ctx, "api server stopped")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	revocations *session.Revocations,
	cartMetrics *metrics.CartMetrics,
) (routes.Services, error) {
	conn := dbClient.DB()
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), cfg.Checkout, logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("catalog service: %w", err)
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		Customers:      customers.NewRepository(conn),
		Store:          redisClient,
		Revocations:    revocations,
		Tx:             dbClient,
		Outbox:         publisher,
		JWTConfig:      cfg.JWT,
		AuthConfig:     cfg.Auth,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("auth service: %w", err)
	}

	cartSvc, err := cart.NewService(cartRepo, dbClient, cfg.Cart, cfg.Eventing, cart.Options{
		Outbox:  publisher,
		Metrics: cartMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("cart service: %w", err)
	}

	checkoutSvc, err := checkout.NewService(
		dbClient,
		checkout.NewRepository(conn),
		cartRepo,
		ordersRepo,
		catalogSvc,
		publisher,
		cfg.Checkout,
		cfg.Eventing,
		checkout.Options{Metrics: cartMetrics, Logger: logg},
	)
	if err != nil {
		return routes.Services{}, fmt.Errorf("checkout service: %w", err)
	}

	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		return routes.Services{}, fmt.Errorf("orders service: %w", err)
	}

	addressSvc, err := address.NewService(address.NewRepository(conn), dbClient, publisher)
	if err != nil {
		return routes.Services{}, fmt.Errorf("address service: %w", err)
	}

	return routes.Services{
		Auth:     authSvc,
		Cart:     cartSvc,
		Checkout: checkoutSvc,
		Orders:   ordersSvc,
		Address:  addressSvc,
		Catalog:  catalogSvc,
	}, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
