package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	authH "github.com/fekuna/omnipos-inventory-service/internal/auth/handler"
	"github.com/fekuna/omnipos-inventory-service/internal/identity/jwt"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/metrics"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/product"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	"github.com/fekuna/omnipos-inventory-service/internal/store/memory"
	pgstore "github.com/fekuna/omnipos-inventory-service/internal/store/postgres"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/search"

	catH "github.com/fekuna/omnipos-inventory-service/internal/category/handler"
	catRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/category/repository"
	catUCPkg "github.com/fekuna/omnipos-inventory-service/internal/category/usecase"

	invH "github.com/fekuna/omnipos-inventory-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/listener"
	invRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"

	prodH "github.com/fekuna/omnipos-inventory-service/internal/product/handler"
	prodRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-inventory-service/internal/product/usecase"

	userH "github.com/fekuna/omnipos-inventory-service/internal/user/handler"
	userRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/user/repository"
	userUCPkg "github.com/fekuna/omnipos-inventory-service/internal/user/usecase"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]readinessCheck{}

	// Record store
	var base store.Store
	switch cfg.Store.Backend {
	case config.StoreMemory:
		base = memory.New()
		appLogger.Warn("Using in-memory store, data is lost on restart")
	case config.StorePostgres:
		db, err := postgres.NewPostgres(&postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to database", zap.Error(err))
		}
		defer db.Close()
		appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

		pg := pgstore.New(db)
		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				appLogger.Fatal("Could not migrate database", zap.Error(err))
			}
		}
		checks["postgres"] = db.PingContext
		base = pg
	default:
		appLogger.Fatal("Unknown store backend", zap.String("backend", cfg.Store.Backend))
	}
	recordStore := store.Instrument(base, store.Options{Timeout: cfg.Store.Timeout})

	// Redis backs the product list cache and, when selected, the distributed lock.
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, caching disabled", zap.Error(err))
		} else {
			redisClient = client
			defer redisClient.Close()
			checks["redis"] = func(ctx context.Context) error { return redisClient.Client.Ping(ctx).Err() }
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case config.LockRedis:
		if redisClient == nil {
			appLogger.Fatal("Redis lock backend selected but Redis is unavailable")
		}
		locker = lock.NewRedisLocker(redisClient, lock.RedisConfig{
			TTL:        cfg.Lock.TTL,
			Retries:    cfg.Lock.Retries,
			RetryDelay: cfg.Lock.RetryDelay,
		}, appLogger)
	default:
		locker = lock.NewKeyedMutex()
	}
	appLogger.Info("Inventory lock ready", zap.String("backend", cfg.Lock.Backend))

	// Optional collaborators stay nil interfaces when their backend is absent.
	var productCache product.Cache
	if redisClient != nil {
		productCache = redisClient
	}

	var searcher product.Searcher
	if cfg.Elastic.Enabled {
		esClient, err := search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Elasticsearch (Search features might be limited)", zap.Error(err))
		} else {
			searcher = esClient
			appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	var publisher inventory.EventPublisher
	var kafkaConsumer *broker.KafkaConsumer
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.InventoryTopic,
		})
		defer producer.Close()
		publisher = producer

		kafkaConsumer = broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Kafka configured",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("orders_topic", cfg.Kafka.Topic),
			zap.String("inventory_topic", cfg.Kafka.InventoryTopic),
		)
	}

	// Access control
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	engine, err := policy.NewEngine(policy.DefaultPermissionSet())
	if err != nil {
		appLogger.Fatal("Invalid permission table", zap.Error(err))
	}
	authz := auth.NewAuthorizer(engine, appMetrics)
	idp := jwt.NewProvider(recordStore, &jwt.Config{
		Secret: cfg.JWT.SecretKey,
		TTL:    cfg.JWT.TTL,
	})

	// Repositories
	catRepo := catRepoPkg.NewStoreRepository(recordStore)
	prodRepo := prodRepoPkg.NewStoreRepository(recordStore)
	invRepo := invRepoPkg.NewStoreRepository(recordStore)
	userRepo := userRepoPkg.NewStoreRepository(recordStore)

	// UseCases
	userUC := userUCPkg.NewUserUseCase(userRepo, authz, appLogger)
	catUC := catUCPkg.NewCategoryUseCase(catRepo, authz, appLogger)
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, authz, productCache, searcher, appLogger)
	invOpts := []invUCPkg.Option{invUCPkg.WithIndexer(prodUC), invUCPkg.WithMetrics(appMetrics)}
	if publisher != nil {
		invOpts = append(invOpts, invUCPkg.WithPublisher(publisher))
	}
	invUC := invUCPkg.NewInventoryUseCase(invRepo, prodRepo, catRepo, locker, authz, appLogger, invOpts...)

	if kafkaConsumer != nil {
		invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, invUC, appLogger)
		go invListener.Start(ctx)
	}

	// gRPC server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.String("port", port), zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			appMetrics.UnaryServerInterceptor(),
			auth.UnaryServerInterceptor(idp, userUC, appLogger),
		),
	)
	authH.NewAuthHandler(idp, authz, appLogger).Register(grpcServer)
	userH.NewUserHandler(userUC, appLogger).Register(grpcServer)
	catH.NewCategoryHandler(catUC, appLogger).Register(grpcServer)
	prodH.NewProductHandler(prodUC, appLogger).Register(grpcServer)
	invH.NewInventoryHandler(invUC, appLogger).Register(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		appLogger.Info("Starting gRPC server", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	var adminServer *http.Server
	if cfg.Server.HTTPPort != "" {
		httpPort := cfg.Server.HTTPPort
		if !strings.HasPrefix(httpPort, ":") {
			httpPort = ":" + httpPort
		}
		adminServer = &http.Server{
			Addr:              httpPort,
			Handler:           newAdminHandler(registry, checks),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			appLogger.Info("Starting admin HTTP server", zap.String("port", httpPort))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Fatal("failed to serve admin HTTP", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()
	if adminServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("admin HTTP shutdown", zap.Error(err))
		}
	}
	appLogger.Info("Server stopped")
}
