// Package config defines the top-level configuration for the strategy lab
// binaries and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/monitor"
	"strategy-lab/internal/regime"
	"strategy-lab/internal/sim"
	"strategy-lab/internal/walkforward"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by STRATLAB_* environment
// variables.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Storage     StorageConfig     `toml:"storage"`
	Sim         SimConfig         `toml:"sim"`
	Regime      RegimeConfig      `toml:"regime"`
	Compare     CompareConfig     `toml:"compare"`
	WalkForward WalkForwardConfig `toml:"walkforward"`
	Monitor     MonitorConfig     `toml:"monitor"`
	Notify      NotifyConfig      `toml:"notify"`
	Server      ServerConfig      `toml:"server"`
}

// StorageConfig holds backend DSNs. Empty DSNs select in-memory stores.
type StorageConfig struct {
	PostgresDSN   string `toml:"postgres_dsn"`
	ClickhouseDSN string `toml:"clickhouse_dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// SimConfig holds simulation economics.
type SimConfig struct {
	InitialCapital      float64 `toml:"initial_capital"`
	PeriodsPerYear      float64 `toml:"periods_per_year"`
	FeeRate             float64 `toml:"fee_rate"`
	SlippageRate        float64 `toml:"slippage_rate"`
	MaxPositionFraction float64 `toml:"max_position_fraction"`
}

// RegimeConfig holds regime detector tuning.
type RegimeConfig struct {
	AgreementThreshold float64 `toml:"agreement_threshold"`
	HistoryCapHours    int     `toml:"history_cap_hours"`
}

// CompareConfig holds strategy comparison settings.
type CompareConfig struct {
	Workers int `toml:"workers"`
}

// WalkForwardConfig holds sweep window spans and grid-search settings.
type WalkForwardConfig struct {
	TrainDays int    `toml:"train_days"`
	TestDays  int    `toml:"test_days"`
	StepDays  int    `toml:"step_days"`
	Objective string `toml:"objective"`
	Workers   int    `toml:"workers"`
}

// MonitorConfig holds stability monitor thresholds. Thresholds apply
// globally; per-strategy overrides are deliberately not supported.
type MonitorConfig struct {
	RecentSamples       int     `toml:"recent_samples"`
	BaselineSamples     int     `toml:"baseline_samples"`
	ReturnDropThreshold float64 `toml:"return_drop_threshold"`
	SharpeDropThreshold float64 `toml:"sharpe_drop_threshold"`
	DrawdownWarningPct  float64 `toml:"drawdown_warning_pct"`
	DrawdownCriticalPct float64 `toml:"drawdown_critical_pct"`
	DrawdownCeilingPct  float64 `toml:"drawdown_ceiling_pct"`
	RegimeMinAgreement  float64 `toml:"regime_min_agreement"`
	PauseCriticalAlerts int     `toml:"pause_critical_alerts"`
	PauseDropThreshold  float64 `toml:"pause_drop_threshold"`
	LookbackHours       int     `toml:"lookback_hours"`
	HistoryCap          int     `toml:"history_cap"`
	CycleSeconds        int     `toml:"cycle_seconds"`
}

// NotifyConfig holds alert sink settings. An empty NATS URL disables the
// JetStream sink.
type NotifyConfig struct {
	NATSUrl     string `toml:"nats_url"`
	NATSStream  string `toml:"nats_stream"`
	NATSSubject string `toml:"nats_subject"`
}

// ServerConfig holds the monitord HTTP listener settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration. Threshold defaults equal the
// constants the evaluation pipeline was designed with.
func Defaults() Config {
	simDefaults := sim.DefaultConfig()
	regimeDefaults := regime.DefaultConfig()
	monitorDefaults := monitor.DefaultConfig()

	capital, _ := simDefaults.InitialCapital.Float64()

	return Config{
		LogLevel: "info",
		Storage: StorageConfig{
			RunMigrations: true,
		},
		Sim: SimConfig{
			InitialCapital:      capital,
			PeriodsPerYear:      simDefaults.PeriodsPerYear,
			FeeRate:             simDefaults.Frictions.FeeRate,
			SlippageRate:        simDefaults.Frictions.SlippageRate,
			MaxPositionFraction: simDefaults.Frictions.MaxPositionFraction,
		},
		Regime: RegimeConfig{
			AgreementThreshold: regimeDefaults.AgreementThreshold,
			HistoryCapHours:    int(regimeDefaults.HistoryCapMs / (60 * 60 * 1000)),
		},
		Compare: CompareConfig{
			Workers: 4,
		},
		WalkForward: WalkForwardConfig{
			TrainDays: 30,
			TestDays:  7,
			StepDays:  7,
			Objective: walkforward.DefaultObjective,
			Workers:   4,
		},
		Monitor: MonitorConfig{
			RecentSamples:       monitorDefaults.RecentSamples,
			BaselineSamples:     monitorDefaults.BaselineSamples,
			ReturnDropThreshold: monitorDefaults.ReturnDropThreshold,
			SharpeDropThreshold: monitorDefaults.SharpeDropThreshold,
			DrawdownWarningPct:  monitorDefaults.DrawdownWarningPct,
			DrawdownCriticalPct: monitorDefaults.DrawdownCriticalPct,
			DrawdownCeilingPct:  monitorDefaults.DrawdownCeilingPct,
			RegimeMinAgreement:  monitorDefaults.RegimeMinAgreement,
			PauseCriticalAlerts: monitorDefaults.PauseCriticalAlerts,
			PauseDropThreshold:  monitorDefaults.PauseDropThreshold,
			LookbackHours:       int(monitorDefaults.LookbackMs / (60 * 60 * 1000)),
			HistoryCap:          monitorDefaults.HistoryCap,
			CycleSeconds:        300,
		},
		Notify: NotifyConfig{
			NATSStream:  "ALERTS",
			NATSSubject: "alerts",
		},
		Server: ServerConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks Config for obviously invalid values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if err := c.SimConfig().Validate(); err != nil {
		errs = append(errs, "sim: "+err.Error())
	}
	if c.Regime.AgreementThreshold <= 0 || c.Regime.AgreementThreshold > 1 {
		errs = append(errs, fmt.Sprintf("regime: agreement_threshold %g outside (0, 1]", c.Regime.AgreementThreshold))
	}
	if c.Regime.HistoryCapHours < 1 {
		errs = append(errs, fmt.Sprintf("regime: history_cap_hours %d must be positive", c.Regime.HistoryCapHours))
	}
	if c.Compare.Workers < 1 {
		errs = append(errs, fmt.Sprintf("compare: workers %d must be positive", c.Compare.Workers))
	}
	if c.WalkForward.TrainDays < 1 || c.WalkForward.TestDays < 1 || c.WalkForward.StepDays < 1 {
		errs = append(errs, fmt.Sprintf("walkforward: spans train=%d test=%d step=%d must all be positive",
			c.WalkForward.TrainDays, c.WalkForward.TestDays, c.WalkForward.StepDays))
	}
	if err := c.MonitorConfig().Validate(); err != nil {
		errs = append(errs, "monitor: "+err.Error())
	}
	if c.Monitor.CycleSeconds < 1 {
		errs = append(errs, fmt.Sprintf("monitor: cycle_seconds %d must be positive", c.Monitor.CycleSeconds))
	}
	if c.Notify.NATSUrl != "" && (c.Notify.NATSSubject == "" || c.Notify.NATSStream == "") {
		errs = append(errs, "notify: nats_stream and nats_subject must be set when nats_url is set")
	}

	if len(errs) > 0 {
		return errors.New("invalid configuration:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// SimConfig converts the TOML section into the simulator's config type.
func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		InitialCapital: decimal.NewFromFloat(c.Sim.InitialCapital),
		PeriodsPerYear: c.Sim.PeriodsPerYear,
		Frictions: domain.Frictions{
			FeeRate:             c.Sim.FeeRate,
			SlippageRate:        c.Sim.SlippageRate,
			MaxPositionFraction: c.Sim.MaxPositionFraction,
		},
	}
}

// RegimeConfig converts the TOML section into the detector's config type.
func (c *Config) RegimeConfig() regime.Config {
	return regime.Config{
		AgreementThreshold: c.Regime.AgreementThreshold,
		HistoryCapMs:       int64(c.Regime.HistoryCapHours) * 60 * 60 * 1000,
		PeriodsPerYear:     c.Sim.PeriodsPerYear,
	}
}

// WalkForwardConfig converts the TOML section into the optimizer's config type.
func (c *Config) WalkForwardConfig() walkforward.Config {
	return walkforward.Config{
		TrainDays: c.WalkForward.TrainDays,
		TestDays:  c.WalkForward.TestDays,
		StepDays:  c.WalkForward.StepDays,
		Objective: c.WalkForward.Objective,
		Workers:   c.WalkForward.Workers,
	}
}

// MonitorConfig converts the TOML section into the monitor's config type.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		RecentSamples:       c.Monitor.RecentSamples,
		BaselineSamples:     c.Monitor.BaselineSamples,
		ReturnDropThreshold: c.Monitor.ReturnDropThreshold,
		SharpeDropThreshold: c.Monitor.SharpeDropThreshold,
		DrawdownWarningPct:  c.Monitor.DrawdownWarningPct,
		DrawdownCriticalPct: c.Monitor.DrawdownCriticalPct,
		DrawdownCeilingPct:  c.Monitor.DrawdownCeilingPct,
		RegimeMinAgreement:  c.Monitor.RegimeMinAgreement,
		PauseCriticalAlerts: c.Monitor.PauseCriticalAlerts,
		PauseDropThreshold:  c.Monitor.PauseDropThreshold,
		LookbackMs:          int64(c.Monitor.LookbackHours) * 60 * 60 * 1000,
		HistoryCap:          c.Monitor.HistoryCap,
	}
}
