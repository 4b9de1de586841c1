// Package main provides the monitord entry point: a long-running daemon
// that samples recent trade performance per (strategy, instrument) pair,
// evaluates degradation rules, persists alerts and health verdicts, and
// streams alerts to NATS and WebSocket subscribers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	osignal "os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/monitor"
	"strategy-lab/internal/notify"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/regime"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// pair identifies one monitored (strategy, instrument) combination.
type pair struct {
	strategyID string
	instrument string
}

// daemon holds monitord's wiring.
type daemon struct {
	cfg    *config.Config
	logger *zap.Logger

	frames storage.FrameStore
	trades storage.TradeStore
	alerts storage.AlertStore
	health storage.HealthStatusStore

	monitor *monitor.Monitor
	fanout  *notify.Fanout
	hub     *notify.WSHub

	pairs []pair

	// Per-instrument regime tracking across cycles.
	detectors map[string]*regime.Detector
	lastBarMs map[string]int64
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file")
	strategies := flag.String("strategies", "", "Comma-separated strategy ids to monitor (required)")
	instruments := flag.String("instruments", "", "Comma-separated instruments to monitor (required)")
	flag.Parse()

	strategyList := splitList(*strategies)
	instrumentList := splitList(*instruments)
	if len(strategyList) == 0 || len(instrumentList) == 0 {
		fmt.Fprintln(os.Stderr, "--strategies and --instruments are required")
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

	d, cleanup, err := setup(ctx, cfg, logger, strategyList, instrumentList)
	if err != nil {
		logger.Fatal("setup", zap.Error(err))
	}
	defer cleanup()

	if err := d.run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("monitord", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func setup(ctx context.Context, cfg *config.Config, logger *zap.Logger, strategies, instruments []string) (*daemon, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Bar and trade history: ClickHouse when configured.
	var frames storage.FrameStore
	var trades storage.TradeStore
	if dsn := cfg.Storage.ClickhouseDSN; dsn != "" {
		var conn *chstore.Conn
		var err error
		if cfg.Storage.RunMigrations {
			conn, err = migrations.RunClickhouseMigrations(ctx, dsn)
		} else {
			conn, err = chstore.NewConn(ctx, dsn)
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })
		frames = chstore.NewFrameStore(conn)
		trades = chstore.NewTradeStore(conn)
	} else {
		frames = memory.NewFrameStore()
		trades = memory.NewTradeStore()
	}

	// Alerts and health verdicts: Postgres when configured.
	var alerts storage.AlertStore
	var health storage.HealthStatusStore
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if cfg.Storage.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		alerts = pgstore.NewAlertStore(pool)
		health = pgstore.NewHealthStatusStore(pool)
	} else {
		alerts = memory.NewAlertStore()
		health = memory.NewHealthStatusStore()
	}

	mon, err := monitor.New(cfg.MonitorConfig(), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create monitor: %w", err)
	}
	cleanups = append(cleanups, func() { mon.Close() })

	hub := notify.NewWSHub(logger)
	sinks := []notify.Sink{hub}
	if cfg.Notify.NATSUrl != "" {
		nats, err := notify.NewNATSSink(cfg.Notify.NATSUrl, cfg.Notify.NATSStream, cfg.Notify.NATSSubject, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		sinks = append(sinks, nats)
	}
	fanout := notify.NewFanout(logger, sinks...)
	cleanups = append(cleanups, func() { fanout.Close() })

	pairs := make([]pair, 0, len(strategies)*len(instruments))
	for _, s := range strategies {
		for _, i := range instruments {
			pairs = append(pairs, pair{strategyID: s, instrument: i})
		}
	}

	detectors := make(map[string]*regime.Detector, len(instruments))
	lastBarMs := make(map[string]int64, len(instruments))
	for _, inst := range instruments {
		detectors[inst] = regime.NewDetector(inst, cfg.RegimeConfig())
	}

	return &daemon{
		cfg:       cfg,
		logger:    logger,
		frames:    frames,
		trades:    trades,
		alerts:    alerts,
		health:    health,
		monitor:   mon,
		fanout:    fanout,
		hub:       hub,
		pairs:     pairs,
		detectors: detectors,
		lastBarMs: lastBarMs,
	}, cleanup, nil
}

// run serves HTTP and drives monitoring cycles until the context ends.
func (d *daemon) run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/ws/alerts", d.hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/status", d.handleStatus)

	srv := &http.Server{Addr: d.cfg.Server.Addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return d.cycleLoop(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// cycleLoop runs one monitoring cycle immediately and then on every tick.
func (d *daemon) cycleLoop(ctx context.Context) error {
	interval := time.Duration(d.cfg.Monitor.CycleSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

// cycle evaluates every monitored pair once. Downstream failures are
// logged and counted; a cycle never aborts.
func (d *daemon) cycle(ctx context.Context) {
	started := time.Now()
	nowMs := started.UnixMilli()
	since := nowMs - d.cfg.MonitorConfig().LookbackMs

	d.trackRegimes(ctx, nowMs)

	observed := 0
	for _, p := range d.pairs {
		if ctx.Err() != nil {
			return
		}

		trades, err := d.trades.GetByKeySince(ctx, p.strategyID, p.instrument, since)
		if err != nil {
			d.logger.Warn("load trades failed",
				zap.String("strategy", p.strategyID),
				zap.String("instrument", p.instrument),
				zap.Error(err),
			)
			continue
		}

		sample, ok := monitor.SampleFromTrades(trades, nowMs)
		if !ok {
			continue
		}

		assessment, err := d.monitor.Observe(monitor.Update{
			StrategyID: p.strategyID,
			Instrument: p.instrument,
			Sample:     sample,
		})
		if err != nil {
			d.logger.Warn("observe failed",
				zap.String("strategy", p.strategyID),
				zap.String("instrument", p.instrument),
				zap.Error(err),
			)
			continue
		}
		observed++

		d.deliver(ctx, assessment)
	}

	observability.RecordMonitorCycle(observed, time.Since(started).Seconds())
	d.logger.Debug("cycle complete",
		zap.Int("pairs", len(d.pairs)),
		zap.Int("observed", observed),
		zap.Duration("took", time.Since(started)),
	)
}

// trackRegimes folds bars stored since the previous cycle into each
// instrument's detector and feeds transitions to the monitor.
func (d *daemon) trackRegimes(ctx context.Context, nowMs int64) {
	for inst, detector := range d.detectors {
		frame, err := d.frames.GetFrame(ctx, inst, d.lastBarMs[inst]+1, nowMs)
		if err != nil {
			d.logger.Warn("load bars failed", zap.String("instrument", inst), zap.Error(err))
			continue
		}
		for _, bar := range frame.Bars {
			if _, change := detector.Update(bar); change != nil {
				d.monitor.RecordRegimeChange(*change)
				d.logger.Info("regime change",
					zap.String("instrument", inst),
					zap.String("from", change.From),
					zap.String("to", change.To),
					zap.Float64("agreement", change.Agreement),
				)
			}
			d.lastBarMs[inst] = bar.TimestampMs
		}
	}
}

// deliver persists one assessment and publishes its alerts.
func (d *daemon) deliver(ctx context.Context, a monitor.Assessment) {
	for i := range a.Alerts {
		alert := a.Alerts[i]
		observability.RecordAlert(alert.Type, alert.Severity)

		if err := d.alerts.Insert(ctx, &alert); err != nil {
			observability.RecordStoreWriteError("alerts")
			d.logger.Warn("persist alert failed",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
		d.fanout.Publish(ctx, alert)
	}

	if a.Pause != nil {
		observability.RecordPauseRecommendation()
		d.logger.Warn("pause recommended",
			zap.String("strategy", a.Pause.StrategyID),
			zap.String("instrument", a.Pause.Instrument),
			zap.Strings("reasons", a.Pause.Reasons),
		)
	}

	status := domain.HealthStatus{
		StrategyID: a.StrategyID,
		Instrument: a.Instrument,
		Status:     a.Status,
		UpdatedMs:  a.TimestampMs,
	}
	if a.Pause != nil {
		status.Paused = true
		status.PauseReasons = a.Pause.Reasons
	}
	if err := d.health.Upsert(ctx, &status); err != nil {
		observability.RecordStoreWriteError("monitor_status")
		d.logger.Warn("persist health status failed",
			zap.String("strategy", a.StrategyID),
			zap.String("instrument", a.Instrument),
			zap.Error(err),
		)
	}
}

// handleStatus returns the latest health verdict of every monitored pair.
func (d *daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := d.monitor.Statuses()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		d.logger.Warn("encode status response", zap.Error(err))
	}
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
