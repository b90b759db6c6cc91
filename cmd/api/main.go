package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/wishlist-backend/api/routes"
	"github.com/angelmondragon/wishlist-backend/internal/credentials"
	"github.com/angelmondragon/wishlist-backend/internal/gateway"
	"github.com/angelmondragon/wishlist-backend/internal/identity"
	"github.com/angelmondragon/wishlist-backend/internal/moneyrules"
	"github.com/angelmondragon/wishlist-backend/internal/shops"
	"github.com/angelmondragon/wishlist-backend/internal/submissions"
	"github.com/angelmondragon/wishlist-backend/internal/submit"
	"github.com/angelmondragon/wishlist-backend/internal/webhooks"
	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/angelmondragon/wishlist-backend/pkg/db"
	"github.com/angelmondragon/wishlist-backend/pkg/instance"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
	"github.com/angelmondragon/wishlist-backend/pkg/metrics"
	"github.com/angelmondragon/wishlist-backend/pkg/migrate"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox"
	"github.com/angelmondragon/wishlist-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/wishlist-backend/pkg/redis"
	"github.com/angelmondragon/wishlist-backend/pkg/security"
	"github.com/angelmondragon/wishlist-backend/pkg/shopify"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		closeErr := closeAll(redisClient, dbClient)
		if closeErr != nil {
			logg.Error(context.Background(), "error closing connections", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	submissionMetrics := metrics.NewSubmissionMetrics(reg)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, submissionMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
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
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shutting down gracefully")
	}
}

// closeAll closes every connection and reports all failures together.
func closeAll(closers ...io.Closer) error {
	var err error
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	submissionMetrics *metrics.SubmissionMetrics,
) (routes.Dependencies, error) {
	gormDB := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(gormDB), logg)

	shopsSvc, err := shops.NewService(shops.NewRepository(gormDB), dbClient, events, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	sealer, err := security.NewTokenSealer(cfg.Shopify.TokenEncryptionKey)
	if err != nil {
		return routes.Dependencies{}, err
	}
	shopifyClient, err := shopify.NewClient(cfg.Shopify, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	provider, err := credentials.NewProvider(credentials.NewRepository(gormDB), shopifyClient, sealer, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	gw, err := gateway.New(shopifyClient, provider, submissionMetrics, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	customers := identity.NewCustomerRepository(gormDB)
	resolver, err := identity.NewResolver(cfg.Shopify, shopsSvc, customers, gw, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	wishlists, err := wishlist.NewService(wishlist.NewRepository(gormDB))
	if err != nil {
		return routes.Dependencies{}, err
	}
	rules, err := moneyrules.NewService(moneyrules.NewRepository(gormDB))
	if err != nil {
		return routes.Dependencies{}, err
	}
	ledger, err := submissions.NewLedger(submissions.NewRepository(gormDB), dbClient, events)
	if err != nil {
		return routes.Dependencies{}, err
	}

	submitSvc, err := submit.NewService(submit.ServiceParams{
		Config:    cfg.Submission,
		Wishlists: wishlists,
		Ledger:    ledger,
		Rules:     rules,
		Gateway:   gw,
		Locker:    redisClient,
		Metrics:   submissionMetrics,
		Logger:    logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	webhookSvc, err := webhooks.NewService(shopsSvc, ledger, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:           dbClient,
		Redis:        redisClient,
		Resolver:     resolver,
		Customers:    customers,
		Shops:        shopsSvc,
		Wishlists:    wishlists,
		Ledger:       ledger,
		Submit:       submitSvc,
		Rules:        rules,
		Gateway:      gw,
		Webhooks:     webhookSvc,
		WebhookGuard: guard,
	}, nil
}
