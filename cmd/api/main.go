package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campustrade/market-api/internal/auth"
	"github.com/campustrade/market-api/internal/cart"
	"github.com/campustrade/market-api/internal/catalog"
	"github.com/campustrade/market-api/internal/config"
	"github.com/campustrade/market-api/internal/messaging"
	"github.com/campustrade/market-api/internal/notifications"
	"github.com/campustrade/market-api/internal/orders"
	"github.com/campustrade/market-api/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}
	if cfg.Auth.Secret == "" {
		logger.Error("AUTH_SECRET environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "market-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("market-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	var publisher orders.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer = messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events disabled")
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	authed := auth.Middleware(issuer)

	authHandler := auth.NewHandler(auth.NewUserRepository(db), issuer, logger)

	itemRepo := catalog.NewItemRepository(db)
	var catalogHandler *catalog.Handler
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		cache := catalog.NewItemCache(rdb, cfg.Redis.ItemTTL)
		catalogHandler = catalog.NewHandler(itemRepo, cache, metrics, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, item cache disabled")
		catalogHandler = catalog.NewHandler(itemRepo, nil, metrics, logger)
	}

	cartHandler := cart.NewHandler(cart.NewCartRepository(db), logger)
	orderHandler := orders.NewHandler(orders.NewOrderRepository(db), publisher, metrics, logger)
	notificationHandler := notifications.NewHandler(notifications.NewNotificationRepository(db), logger)

	mux := http.NewServeMux()

	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("POST /auth/register", telemetry.WithHTTPRoute(authHandler.HandleRegister))
	mux.HandleFunc("POST /auth/login", telemetry.WithHTTPRoute(authHandler.HandleLogin))

	mux.HandleFunc("GET /items", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /items/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("POST /items", telemetry.WithHTTPRoute(authed(catalogHandler.HandleCreate)))
	mux.HandleFunc("DELETE /items/{id}", telemetry.WithHTTPRoute(authed(catalogHandler.HandleDelist)))

	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(authed(cartHandler.HandleList)))
	mux.HandleFunc("POST /cart", telemetry.WithHTTPRoute(authed(cartHandler.HandleAdd)))
	mux.HandleFunc("PATCH /cart/{itemId}", telemetry.WithHTTPRoute(authed(cartHandler.HandleUpdate)))
	mux.HandleFunc("DELETE /cart/{itemId}", telemetry.WithHTTPRoute(authed(cartHandler.HandleRemove)))
	mux.HandleFunc("POST /cart/remove", telemetry.WithHTTPRoute(authed(cartHandler.HandleRemoveBatch)))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(authed(cartHandler.HandleClear)))

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(authed(orderHandler.HandleCreate)))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(authed(orderHandler.HandleListMine)))
	mux.HandleFunc("GET /orders/sales", telemetry.WithHTTPRoute(authed(orderHandler.HandleListSales)))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(authed(orderHandler.HandleGet)))
	mux.HandleFunc("POST /orders/{id}/pay", telemetry.WithHTTPRoute(authed(orderHandler.HandlePay)))
	mux.HandleFunc("POST /orders/{id}/ship", telemetry.WithHTTPRoute(authed(orderHandler.HandleShip)))
	mux.HandleFunc("POST /orders/{id}/receipt", telemetry.WithHTTPRoute(authed(orderHandler.HandleReceipt)))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(authed(orderHandler.HandleCancel)))

	mux.HandleFunc("GET /notifications", telemetry.WithHTTPRoute(authed(notificationHandler.HandleList)))
	mux.HandleFunc("POST /notifications/{id}/read", telemetry.WithHTTPRoute(authed(notificationHandler.HandleMarkRead)))

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: otelhttp.NewHandler(mux, "market-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting market api", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
