package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/adapter/relay"
	"github.com/rl1809/allocation/internal/adapter/storage"
	"github.com/rl1809/allocation/internal/config"
	"github.com/rl1809/allocation/internal/observability"
)

const serviceName = "allocation-relay"

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

	relay.LogCleanupMode(logger, cfg.Relay.KeepEnvelopes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.APIVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	db, err := storage.OpenMySQL(cfg.MySQLDSN())
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	defer db.Close()
	if err := storage.WaitForMySQL(ctx, db, cfg.Database.ConnectTimeout, logger); err != nil {
		logger.Fatal("mysql never became reachable", zap.Error(err))
	}

	writer := relay.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer writer.Close()

	logger.Info("relaying outbox",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Duration("interval", cfg.Relay.Interval),
	)
	r := relay.NewOutboxRelay(storage.NewMySQLOutbox(db), writer, logger)
	if err := r.Run(ctx, cfg.Relay.Interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay stopped", zap.Error(err))
	}
	logger.Info("relay stopped")
}
