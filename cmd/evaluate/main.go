// Package main provides the evaluate entry point: it loads one
// instrument's frame, classifies regimes, simulates every requested
// strategy and writes the ranked comparison report.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	osignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/compare"
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
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file")
	instrument := flag.String("instrument", "", "Instrument to evaluate (required)")
	startMs := flag.Int64("start", 0, "Range start, Unix ms (default: all stored bars)")
	endMs := flag.Int64("end", 0, "Range end, Unix ms inclusive (default: all stored bars)")
	strategies := flag.String("strategies", "", "Comma-separated strategy ids (default: all registered)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	flag.Parse()

	if *instrument == "" {
		fmt.Fprintln(os.Stderr, "--instrument is required")
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

	frames, trades, cleanup, err := openStores(ctx, cfg)
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
	logger.Info("frame loaded",
		zap.String("instrument", *instrument),
		zap.Int("bars", frame.Len()),
		zap.Int("indicator_columns", len(frame.Columns)),
	)

	// Classify regimes over the full frame before simulating.
	detector := regime.NewDetector(*instrument, cfg.RegimeConfig())
	for _, bar := range frame.Bars {
		detector.Update(bar)
	}
	regimes := detector.Snapshots()

	registry := signal.DefaultRegistry()
	comparator := compare.NewComparator(registry, logger, cfg.Compare.Workers)

	started := time.Now()
	report, err := comparator.Run(ctx, compare.Input{
		Instrument: *instrument,
		Frame:      frame,
		Regimes:    regimes,
		Strategies: splitList(*strategies),
		SimConfig:  cfg.SimConfig(),
	})
	if err != nil {
		logger.Fatal("comparison failed", zap.Error(err))
	}

	var failed []string
	for _, o := range report.Outcomes {
		if o.Err != "" {
			failed = append(failed, o.Strategy)
		}
	}
	observability.RecordComparison(time.Since(started).Seconds(), failed)

	persistTrades(ctx, trades, report, logger)

	if err := writeOutputs(*outputDir, *instrument, report); err != nil {
		logger.Fatal("write outputs", zap.Error(err))
	}

	logger.Info("comparison complete",
		zap.String("instrument", *instrument),
		zap.Int("strategies", len(report.Outcomes)),
		zap.Int("failed", len(failed)),
		zap.String("best", report.Best),
	)
}

// persistTrades stores the trades of every computed outcome. A store
// failure is logged and counted; the report is still written.
func persistTrades(ctx context.Context, store storage.TradeStore, report *compare.Report, logger *zap.Logger) {
	for _, o := range report.Outcomes {
		if len(o.Trades) == 0 {
			continue
		}
		if err := store.InsertBulk(ctx, o.Trades); err != nil {
			observability.RecordStoreWriteError("trades")
			logger.Warn("persist trades failed",
				zap.String("strategy", o.Strategy),
				zap.String("run_id", o.RunID),
				zap.Error(err),
			)
		}
	}
}

func writeOutputs(dir, instrument string, report *compare.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	view := reporting.NewGenerator().BuildComparison(report)
	md := reporting.RenderComparisonMarkdown(view)
	mdPath := filepath.Join(dir, fmt.Sprintf("comparison_%s.md", instrument))
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return err
	}

	var all []*domain.Trade
	for _, o := range report.Outcomes {
		all = append(all, o.Trades...)
	}
	csvPath := filepath.Join(dir, fmt.Sprintf("trades_%s.csv", instrument))
	return os.WriteFile(csvPath, []byte(reporting.RenderTradesCSV(all)), 0o644)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// openStores connects to ClickHouse when a DSN is configured and falls
// back to in-memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config) (storage.FrameStore, storage.TradeStore, func(), error) {
	dsn := cfg.Storage.ClickhouseDSN
	if dsn == "" {
		return memory.NewFrameStore(), memory.NewTradeStore(), func() {}, nil
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
	return chstore.NewFrameStore(conn), chstore.NewTradeStore(conn), func() { conn.Close() }, nil
}
