package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/allocation/internal/adapter/handler"
	"github.com/rl1809/allocation/internal/adapter/notification"
	"github.com/rl1809/allocation/internal/adapter/storage"
	"github.com/rl1809/allocation/internal/config"
	"github.com/rl1809/allocation/internal/core/bus"
	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/observability"
)

const serviceName = "allocation"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(serviceName, cfg.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.APIVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	// Initialize MySQL
	db, err := storage.OpenMySQL(cfg.MySQLDSN())
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	if err := storage.WaitForMySQL(ctx, db, cfg.Database.ConnectTimeout, logger); err != nil {
		logger.Fatal("mysql never became reachable", zap.Error(err))
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}
	logger.Info("connected to mysql", zap.String("database", cfg.Database.Name))

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	// Wire the service layer
	views := storage.NewRedisAllocationsView(rdb)
	uow := storage.NewMySQLUnitOfWorkFactory(db,
		storage.WithLogger(logger),
		storage.KeepEnvelopes(cfg.Relay.KeepEnvelopes),
	)
	handlers, err := service.NewHandlers(
		uow,
		views,
		notification.NewSMTPSender(cfg.Email.Host, cfg.Email.Port),
		logger,
	)
	if err != nil {
		logger.Fatal("failed to build handlers", zap.Error(err))
	}
	messageBus, err := service.Bootstrap(handlers, bus.WithHooks(bus.LoggingHooks(logger)))
	if err != nil {
		logger.Fatal("failed to bootstrap message bus", zap.Error(err))
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterAllocationServer(grpcServer, handler.NewGRPCHandler(messageBus, views, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(messageBus, views, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewRouter(httpHandler),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Allocate cascades outlive their HTTP response; they still need the stores
	if err := httpHandler.Drain(shutdownCtx); err != nil {
		logger.Warn("allocation cascades still running at shutdown", zap.Error(err))
	} else {
		logger.Info("allocation cascades drained")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
