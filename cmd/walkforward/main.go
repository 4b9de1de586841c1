// Package main provides the walkforward entry point: it runs one rolling
// train/test sweep for one strategy over one instrument and writes the
// stability report.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	osignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/regime"
	"strategy-lab/internal/reporting"
	"strategy-lab/internal/signal"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	"strategy-lab/internal/walkforward"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file")
	instrument := flag.String("instrument", "", "Instrument to sweep (required)")
	strategyID := flag.String("strategy", "", "Strategy id to sweep (required)")
	startMs := flag.Int64("start", 0, "Range start, Unix ms (default: all stored bars)")
	endMs := flag.Int64("end", 0, "Range end, Unix ms inclusive (default: all stored bars)")
	objective := flag.String("objective", "", "Objective name (default: from config)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	flag.Parse()

	if *instrument == "" || *strategyID == "" {
		fmt.Fprintln(os.Stderr, "--instrument and --strategy are required")
		flag.PrintDefaults()
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

	ctx, cancel := osignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	frames, windows, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer cleanup()

	end := *endMs
	if end == 0 {
		end = math.MaxInt64
	}
	frame, err := frames.GetFrame(ctx, *instrument, *startMs, end)
	if err != nil {
		logger.Fatal("load frame", zap.String("instrument", *instrument), zap.Error(err))
	}
	if frame.Len() == 0 {
		logger.Fatal("no bars stored for range",
			zap.String("instrument", *instrument),
			zap.Int64("start", *startMs),
			zap.Int64("end", end),
		)
	}

	detector := regime.NewDetector(*instrument, cfg.RegimeConfig())
	for _, bar := range frame.Bars {
		detector.Update(bar)
	}

	wfCfg := cfg.WalkForwardConfig()
	if *objective != "" {
		wfCfg.Objective = *objective
	}

	// Persist each window as it completes; a failing write never discards
	// the sweep.
	step := func(ctx context.Context, w domain.WalkForwardWindow) error {
		if err := windows.Insert(ctx, &w); err != nil {
			observability.RecordStoreWriteError("walkforward_windows")
			logger.Warn("persist window failed",
				zap.String("run_id", w.RunID),
				zap.Int("index", w.Index),
				zap.Error(err),
			)
		}
		return nil
	}

	optimizer := walkforward.New(signal.DefaultRegistry(), logger)

	started := time.Now()
	result, err := optimizer.Run(ctx, walkforward.Input{
		Instrument: *instrument,
		StrategyID: *strategyID,
		Frame:      frame,
		Regimes:    detector.Snapshots(),
		Config:     wfCfg,
		Sim:        cfg.SimConfig(),
		Step:       step,
	})
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}
	observability.RecordSweep(string(result.Status), len(result.Windows), time.Since(started).Seconds())

	if err := writeOutputs(*outputDir, result); err != nil {
		logger.Fatal("write outputs", zap.Error(err))
	}

	logger.Info("sweep complete",
		zap.String("run_id", result.RunID),
		zap.String("status", string(result.Status)),
		zap.Int("windows", len(result.Windows)),
		zap.Float64("stability_score", result.Stability.Score),
		zap.String("grade", result.Stability.Grade),
	)
}

func writeOutputs(dir string, result *walkforward.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	view := reporting.NewGenerator().BuildStability(result)
	md := reporting.RenderStabilityMarkdown(view)
	mdPath := filepath.Join(dir, fmt.Sprintf("stability_%s_%s.md", result.StrategyID, result.Instrument))
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return err
	}

	csvPath := filepath.Join(dir, fmt.Sprintf("windows_%s_%s.csv", result.StrategyID, result.Instrument))
	return os.WriteFile(csvPath, []byte(reporting.RenderWindowsCSV(result.Windows)), 0o644)
}

// openStores connects to ClickHouse when a DSN is configured and falls
// back to in-memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config) (storage.FrameStore, storage.WindowStore, func(), error) {
	dsn := cfg.Storage.ClickhouseDSN
	if dsn == "" {
		return memory.NewFrameStore(), memory.NewWindowStore(), func() {}, nil
	}

	var conn *chstore.Conn
	var err error
	if cfg.Storage.RunMigrations {
		conn, err = migrations.RunClickhouseMigrations(ctx, dsn)
	} else {
		conn, err = chstore.NewConn(ctx, dsn)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return chstore.NewFrameStore(conn), chstore.NewWindowStore(conn), func() { conn.Close() }, nil
}
