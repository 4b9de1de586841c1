// Package main provides the ingest entry point: it loads CSV bar files
// with precomputed indicator columns into the frame store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"strategy-lab/internal/config"
	"strategy-lab/internal/ingest"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file")
	instrument := flag.String("instrument", "", "Instrument identifier (default: derived from file name)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] <file.csv> [file.csv ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *instrument != "" && len(files) > 1 {
		fmt.Fprintln(os.Stderr, "--instrument only applies to a single file")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	frames, cleanup, err := openFrameStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open frame store", zap.Error(err))
	}
	defer cleanup()

	loader := ingest.NewLoader(frames, logger)

	total := 0
	for _, path := range files {
		n, err := loader.LoadFile(ctx, path, *instrument)
		if err != nil {
			logger.Fatal("ingest failed", zap.String("file", path), zap.Error(err))
		}
		total += n
	}

	logger.Info("ingest complete", zap.Int("files", len(files)), zap.Int("bars", total))
}

// openFrameStore connects to ClickHouse when a DSN is configured and falls
// back to the in-memory store otherwise. The in-memory fallback only makes
// sense for dry runs: the data is gone when the process exits.
func openFrameStore(ctx context.Context, cfg *config.Config) (storage.FrameStore, func(), error) {
	dsn := cfg.Storage.ClickhouseDSN
	if dsn == "" {
		return memory.NewFrameStore(), func() {}, nil
	}

	if cfg.Storage.RunMigrations {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return chstore.NewFrameStore(conn), func() { conn.Close() }, nil
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return chstore.NewFrameStore(conn), func() { conn.Close() }, nil
}
