package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rl1809/pizzeria/internal/adapter/handler"
	"github.com/rl1809/pizzeria/internal/adapter/messaging"
	"github.com/rl1809/pizzeria/internal/adapter/storage"
	"github.com/rl1809/pizzeria/internal/config"
	"github.com/rl1809/pizzeria/internal/core/service"
	"github.com/rl1809/pizzeria/internal/port"
)

const healthProbeInterval = 10 * time.Second

func newLogger(cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(cfg.LogLevel).With().Timestamp().Str("service", "pizzeria").Logger()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	var (
		store port.DatabaseRepository
		db    *sql.DB
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		mem := storage.NewMemoryAdapter()
		storage.SeedDemo(mem)
		store = mem
		logger.Warn().Msg("using in-memory store, state is lost on restart")
	default:
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open mysql")
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ping mysql")
		}
		if err := storage.Migrate(ctx, db, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate schema")
		}
		store = storage.NewMySQLAdapter(db)
		logger.Info().Msg("connected to mysql")
	}

	// Initialize Redis
	var (
		rdb   *redis.Client
		cache port.CacheRepository
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis")
		}
		cache = storage.NewRedisAdapter(rdb)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, approval guard and idempotency keys disabled")
	}

	// Initialize event publishing
	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
	} else {
		publisher = messaging.NewLogPublisher(logger)
	}
	events := service.NewEventDispatcher(publisher, cfg.EventQueueSize, logger)
	events.Start(cfg.EventWorkers)

	// Initialize services
	reconciler := service.NewReconciler(store, logger)
	opts := []service.OrderServiceOption{service.WithRetryLimit(cfg.CartRetryLimit)}
	if cache != nil {
		opts = append(opts, service.WithApprovalGuard(cache, cfg.ApprovalGuardTTL))
	}
	orderService := service.NewOrderService(store, reconciler, events, logger, opts...)
	svc := handler.Services{
		Cart:      service.NewCartService(store, store, events, logger, cfg.CartRetryLimit),
		Orders:    orderService,
		Inventory: service.NewInventoryService(store, logger),
		Catalog:   service.NewCatalogService(store, service.StandardPricing{}, logger),
	}

	if cfg.StaleCartTTL > 0 {
		sweeper := service.NewCartSweeper(store, orderService, cfg.StaleCartTTL, cfg.StaleCartInterval, logger)
		go sweeper.Run(ctx)
	}

	// Initialize gRPC health server
	grpcHandler := handler.NewGRPCHandler(store.Ping, logger)
	grpcServer := grpcHandler.NewServer()
	go grpcHandler.Watch(ctx, healthProbeInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("failed to listen")
	}

	go func() {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(svc, cache, store.Ping, logger)
	router := httpHandler.NewRouter(handler.RouterConfig{
		JWTSecret:    []byte(cfg.JWTSecret),
		RateLimitRPS: cfg.RateLimitRPS,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")
	cancel()

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown")
	}
	logger.Info().Msg("HTTP server stopped")

	// Stop gRPC server
	grpcHandler.Shutdown()
	grpcServer.GracefulStop()
	logger.Info().Msg("gRPC server stopped")

	// Drain event queue and wait for workers
	events.Close()
	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("close event publisher")
	}
	logger.Info().Msg("event workers stopped")

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info().Msg("connections closed")
}
