package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/salesbot/salesbot/internal/config"
	"github.com/salesbot/salesbot/internal/observability"
	"github.com/salesbot/salesbot/internal/query/postgres"
	"github.com/salesbot/salesbot/internal/seed"
	s3store "github.com/salesbot/salesbot/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("salesbot-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		sink    seed.Sink
		parquet *seed.ParquetSink
	)
	switch seedCfg.Sink {
	case seed.SinkPostgres:
		db, err := postgres.Open(ctx, postgres.DBConfig{DSN: cfg.Store.DSN, MaxOpenConns: 2})
		if err != nil {
			logger.Error("failed to open store db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		sink, err = seed.NewPostgresSink(db, seedCfg.Truncate)
		if err != nil {
			logger.Error("failed to create postgres sink", slog.Any("error", err))
			os.Exit(1)
		}
	case seed.SinkParquet:
		objects, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		parquet, err = seed.NewParquetSink(objects, seedCfg.Dataset, time.Now())
		if err != nil {
			logger.Error("failed to create parquet sink", slog.Any("error", err))
			os.Exit(1)
		}
		sink = parquet
	}

	service, err := seed.NewService(seedCfg, sink, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := service.Run(ctx); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	if parquet != nil {
		logger.Info("snapshot uploaded; point the duckdb store at it",
			slog.String("SALESBOT_DATASET_OBJECT_KEYS", strings.Join(parquet.Keys(), ",")))
	}
}
