package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment from .env files for local development.
	// Prefer the Rails app .env if present.
	_ = godotenv.Load("../benchmark_ui/.env")
	_ = godotenv.Load(".env")

	var testRunID int64
	var service bool
	var configPath string
	var partitions int
	flag.Int64Var(&testRunID, "test-run-id", 0, "ID of test_runs row to attach results to (omit to run service)")
	flag.BoolVar(&service, "service", false, "Run as background service listening to Sidekiq queue")
	flag.StringVar(&configPath, "config", "", "Optional YAML config file")
	flag.IntVar(&partitions, "partitions", 0, "Number of partitions summarized in parallel (overrides config)")
	flag.Parse()

	cfg, cfgErr := loadConfig(configPath)
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		logger, _ = newLogger("info")
	}
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Fatal("config error", zap.Error(cfgErr))
	}
	if partitions > 0 {
		cfg.Partitions = partitions
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := buildDSNFromEnv()
	if err != nil {
		logger.Fatal("database config error", zap.Error(err))
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal("connect error", zap.Error(err))
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("database not reachable", zap.Error(err))
	}

	w := &worker{db: db, cfg: cfg, logger: logger}

	if service || (testRunID == 0 && flag.NArg() == 0) {
		logger.Info("starting service", zap.Int("partitions", cfg.Partitions))
		if err := w.runService(ctx); err != nil {
			logger.Fatal("service stopped", zap.Error(err))
		}
		return
	}

	if testRunID == 0 && flag.NArg() > 0 {
		var v int64
		if _, err := fmt.Sscan(flag.Arg(0), &v); err == nil {
			testRunID = v
		}
	}
	if testRunID == 0 {
		logger.Fatal("missing --test-run-id <id> argument or --service")
	}

	if err := w.processTestRun(ctx, testRunID); err != nil {
		logger.Fatal("processing failed", zap.Int64("test_run_id", testRunID), zap.Error(err))
	}
}
