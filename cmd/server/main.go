package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/blood-service/internal/adapter/handler"
	"github.com/rl1809/blood-service/internal/adapter/messaging"
	"github.com/rl1809/blood-service/internal/adapter/storage"
	"github.com/rl1809/blood-service/internal/config"
	"github.com/rl1809/blood-service/internal/core/service"
	"github.com/rl1809/blood-service/internal/observability"
	"github.com/rl1809/blood-service/internal/port"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.MustNewLogger("blood-service", "dev").Fatal("load_config_failed", zap.Error(err))
	}

	logger := observability.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Fatal("setup_tracing_failed", zap.Error(err))
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize record store
	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open_store_failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	store := storage.NewInstrumentedStore(backend, metrics)

	// Initialize event publisher
	var publisher port.DemandPublisher
	var kafkaPublisher *messaging.KafkaPublisher
	if cfg.KafkaBroker != "" {
		kafkaPublisher, err = messaging.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, cfg.ServiceName, otel.GetTracerProvider())
		if err != nil {
			logger.Fatal("kafka_publisher_failed", zap.Error(err))
		}
		publisher = kafkaPublisher
		logger.Info("kafka_publisher_enabled",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	// Initialize services
	subscriptionService := service.NewSubscriptionService(store)
	inventoryService := service.NewInventoryService(store)
	demandService := service.NewDemandService(store, publisher)

	// Initialize gRPC server
	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcHandler := handler.NewGRPCHandler(subscriptionService, inventoryService, demandService, logger, metrics)
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(grpcHandler.UnaryInterceptor))
		handler.RegisterBloodServiceServer(grpcServer, grpcHandler)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc_listen_failed", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
		}

		go func() {
			logger.Info("grpc_server_listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc_server_error", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(subscriptionService, inventoryService, demandService, logger, metrics)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpHandler.Router())

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		logger.Info("http_server_listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store_driver", cfg.StoreDriver),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	logger.Info("http_server_stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("grpc_server_stopped")
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Warn("kafka_close_failed", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Warn("store_close_failed", zap.Error(err))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_failed", zap.Error(err))
	}
	logger.Info("connections_closed")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.RecordStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		logger.Info("connected_to_mysql")
		return storage.NewMySQLAdapter(db), nil

	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, err
		}
		logger.Info("connected_to_redis")
		return storage.NewRedisAdapter(rdb), nil

	default:
		logger.Info("using_memory_store")
		return storage.NewMemoryAdapter(), nil
	}
}
