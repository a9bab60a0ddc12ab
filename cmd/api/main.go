package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-storefront/api/controllers"
	"github.com/angelmondragon/packfinderz-storefront/api/routes"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/paymentmethods"
	"github.com/angelmondragon/packfinderz-storefront/internal/shipping"
	"github.com/angelmondragon/packfinderz-storefront/internal/storefront"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/angelmondragon/packfinderz-storefront/pkg/migrate"
	"github.com/angelmondragon/packfinderz-storefront/pkg/pubsub"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	"github.com/angelmondragon/packfinderz-storefront/pkg/remote"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront-api",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readiness := map[string]controllers.Pinger{}

	var dbClient *db.Client
	if cfg.CartStore.Backend == config.CartStorePostgres || cfg.CartStore.Backend == config.CartStoreSQLite {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		readiness["db"] = dbClient
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness["redis"] = redisClient
	}

	store, err := newCartStore(cfg, dbClient, redisClient)
	requireResource(ctx, logg, "cart store", err)

	catalogRemote, err := remote.New(remote.Options{Name: "catalog", BaseURL: cfg.Catalog.BaseURL, Timeout: cfg.Catalog.Timeout, Breaker: cfg.Breaker})
	requireResource(ctx, logg, "catalog remote", err)
	shippingRemote, err := remote.New(remote.Options{Name: "shipping", BaseURL: cfg.Shipping.BaseURL, Timeout: cfg.Shipping.Timeout, Breaker: cfg.Breaker})
	requireResource(ctx, logg, "shipping remote", err)
	ordersRemote, err := remote.New(remote.Options{Name: "orders", BaseURL: cfg.Orders.BaseURL, Timeout: cfg.Orders.Timeout, Breaker: cfg.Breaker})
	requireResource(ctx, logg, "orders remote", err)

	catalogClient, err := catalog.NewHTTPClient(catalogRemote)
	requireResource(ctx, logg, "catalog client", err)
	catalogService, err := catalog.NewService(catalogClient, logg, time.Now)
	requireResource(ctx, logg, "catalog service", err)
	if _, err := catalogService.Refresh(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "initial catalog refresh failed, starting with an empty catalog")
	}

	calculator, err := shipping.NewHTTPCalculator(shippingRemote)
	requireResource(ctx, logg, "shipping calculator", err)
	ordersClient, err := orders.NewHTTPClient(ordersRemote)
	requireResource(ctx, logg, "orders client", err)

	payments, err := paymentmethods.ParseStatic(cfg.Payments.Methods)
	requireResource(ctx, logg, "payment methods", err)

	var events orders.EventPublisher = orders.NopPublisher{}
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher, err := orders.NewPubSubPublisher(psClient)
		requireResource(ctx, logg, "order event publisher", err)
		events = publisher
		readiness["pubsub"] = psClient
	}

	reg := prometheus.DefaultRegisterer
	submitter, err := orders.NewSubmitter(orders.SubmitterParams{
		Client:  ordersClient,
		Catalog: catalogService,
		Events:  events,
		Logger:  logg,
		Metrics: metrics.NewOrderMetrics(reg),
		Timeout: cfg.Orders.Timeout,
	})
	requireResource(ctx, logg, "order submitter", err)

	registry, err := storefront.NewRegistry(storefront.RegistryParams{
		Store:           store,
		Catalog:         catalogService,
		Payments:        payments,
		Calculator:      calculator,
		Submitter:       submitter,
		Orders:          ordersClient,
		Logger:          logg,
		CartMetrics:     metrics.NewCartMetrics(reg),
		ShippingMetrics: metrics.NewShippingMetrics(reg),
		Debounce:        cfg.Shipping.Debounce,
		ShippingTimeout: cfg.Shipping.Timeout,
		HistoryPageSize: cfg.Orders.PageSize,
	})
	requireResource(ctx, logg, "session registry", err)
	defer registry.Close()

	refresher, err := catalog.NewRefresher(catalog.RefresherParams{
		Service:  catalogService,
		Logger:   logg,
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: cfg.Catalog.RefreshInterval,
	})
	requireResource(ctx, logg, "catalog refresher", err)
	go func() {
		if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "catalog refresher stopped unexpectedly", err)
		}
	}()

	routerParams := routes.Params{
		Config:    cfg,
		Logger:    logg,
		Sessions:  registry,
		Catalog:   catalogService,
		Readiness: readiness,
		Metrics:   promhttp.Handler(),
	}
	if redisClient != nil {
		routerParams.Idempotency = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(routerParams),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"addr":       addr,
		"cart_store": cfg.CartStore.Backend,
	})
	logg.Info(logCtx, "starting storefront api")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
		logg.Info(logCtx, "storefront api shutting down gracefully")
	}
}

func newCartStore(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client) (cart.Store, error) {
	switch cfg.CartStore.Backend {
	case config.CartStoreRedis:
		return cart.NewRedisStore(redisClient, cfg.CartStore.TTL)
	case config.CartStorePostgres, config.CartStoreSQLite:
		return cart.NewGormStore(dbClient.DB())
	default:
		return cart.NewMemoryStore(), nil
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to bootstrap "+resource, err)
	os.Exit(1)
}
