package monitor

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"strategy-lab/internal/domain"
)

const hourMs = int64(3600000)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func observeKey(t *testing.T, m *Monitor, strategy, instrument string, cycle int, ret, sharpe, dd float64) Assessment {
	t.Helper()
	a, err := m.Observe(Update{
		StrategyID: strategy,
		Instrument: instrument,
		Sample: Sample{
			TimestampMs: int64(cycle+1) * hourMs,
			ReturnPct:   ret,
			Sharpe:      sharpe,
			DrawdownPct: dd,
		},
	})
	if err != nil {
		t.Fatalf("Observe cycle %d failed: %v", cycle, err)
	}
	return a
}

func observe(t *testing.T, m *Monitor, cycle int, ret, sharpe, dd float64) Assessment {
	t.Helper()
	return observeKey(t, m, "rsi_reversion", "SOL-USD", cycle, ret, sharpe, dd)
}

func TestObserveDegradationScenario(t *testing.T) {
	// A recent 3-sample mean 15 points below the older 11-sample mean
	// fires the degradation rule at the -10 threshold.
	m := newTestMonitor(t)

	cycle := 0
	for ; cycle < 11; cycle++ {
		a := observe(t, m, cycle, 20, 1.5, 0)
		if len(a.Alerts) != 0 {
			t.Fatalf("cycle %d: unexpected alerts %v", cycle, a.Alerts)
		}
	}
	var last Assessment
	for ; cycle < 14; cycle++ {
		last = observe(t, m, cycle, 5, 1.5, 0)
	}

	if len(last.Alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d: %v", len(last.Alerts), last.Alerts)
	}
	alert := last.Alerts[0]
	if alert.Type != domain.AlertPerformanceDegradation {
		t.Errorf("expected degradation alert, got %s", alert.Type)
	}
	if alert.Severity != domain.SeverityWarning {
		t.Errorf("a 15 point drop is a warning, got %s", alert.Severity)
	}
	if alert.ID == "" {
		t.Error("alert must carry an id")
	}
	if alert.Metrics["drop"] != -15 {
		t.Errorf("expected recorded drop -15, got %v", alert.Metrics["drop"])
	}
	if last.Status != domain.HealthWarning {
		t.Errorf("expected WARNING, got %s", last.Status)
	}
	if last.Pause != nil {
		t.Errorf("one warning must not pause, got %v", last.Pause.Reasons)
	}
}

func TestObserveSmallDropStaysQuiet(t *testing.T) {
	// A 5 point gap is inside the -10 threshold.
	m := newTestMonitor(t)

	cycle := 0
	for ; cycle < 11; cycle++ {
		observe(t, m, cycle, 20, 1.5, 0)
	}
	var last Assessment
	for ; cycle < 14; cycle++ {
		last = observe(t, m, cycle, 15, 1.5, 0)
	}

	if len(last.Alerts) != 0 {
		t.Errorf("expected no alerts, got %v", last.Alerts)
	}
	if last.Status != domain.HealthHealthy {
		t.Errorf("expected HEALTHY, got %s", last.Status)
	}
}

func TestObserveSevereDropEscalatesAndPauses(t *testing.T) {
	// A 26 point drop passes twice the -10 threshold (critical) and the
	// -25 pause threshold.
	m := newTestMonitor(t)

	cycle := 0
	for ; cycle < 11; cycle++ {
		observe(t, m, cycle, 20, 1.5, 0)
	}
	var last Assessment
	for ; cycle < 14; cycle++ {
		last = observe(t, m, cycle, -6, 1.5, 0)
	}

	if len(last.Alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d: %v", len(last.Alerts), last.Alerts)
	}
	if last.Alerts[0].Severity != domain.SeverityCritical {
		t.Errorf("expected critical, got %s", last.Alerts[0].Severity)
	}
	if last.Status != domain.HealthCritical {
		t.Errorf("expected CRITICAL, got %s", last.Status)
	}
	if last.Pause == nil {
		t.Fatal("expected a pause recommendation")
	}
	if len(last.Pause.Reasons) != 1 {
		t.Errorf("expected the drop as the single reason, got %v", last.Pause.Reasons)
	}
}

func TestObserveSharpeDegradation(t *testing.T) {
	m := newTestMonitor(t)

	cycle := 0
	for ; cycle < 11; cycle++ {
		observe(t, m, cycle, 10, 2.0, 0)
	}
	var last Assessment
	for ; cycle < 14; cycle++ {
		last = observe(t, m, cycle, 10, 1.4, 0)
	}

	if len(last.Alerts) != 1 {
		t.Fatalf("expected one alert, got %v", last.Alerts)
	}
	if last.Alerts[0].Type != domain.AlertSharpeDegradation {
		t.Errorf("expected sharpe degradation, got %s", last.Alerts[0].Type)
	}
	if last.Alerts[0].Severity != domain.SeverityWarning {
		t.Errorf("a 0.6 Sharpe drop is a warning, got %s", last.Alerts[0].Severity)
	}
}

func TestObserveSharpeCollapseEscalates(t *testing.T) {
	m := newTestMonitor(t)

	cycle := 0
	for ; cycle < 11; cycle++ {
		observe(t, m, cycle, 10, 2.0, 0)
	}
	var last Assessment
	for ; cycle < 14; cycle++ {
		last = observe(t, m, cycle, 10, 0.9, 0)
	}

	if len(last.Alerts) != 1 {
		t.Fatalf("expected one alert, got %v", last.Alerts)
	}
	if last.Alerts[0].Severity != domain.SeverityCritical {
		t.Errorf("a 1.1 Sharpe drop is critical, got %s", last.Alerts[0].Severity)
	}
}

func TestObserveDrawdownEscalation(t *testing.T) {
	m := newTestMonitor(t)

	a := observe(t, m, 0, 0, 0, -16)
	if len(a.Alerts) != 1 || a.Alerts[0].Type != domain.AlertDrawdownIncrease {
		t.Fatalf("expected a drawdown alert, got %v", a.Alerts)
	}
	if a.Alerts[0].Severity != domain.SeverityWarning {
		t.Errorf("-16%% is a warning, got %s", a.Alerts[0].Severity)
	}

	a = observe(t, m, 1, 0, 0, -26)
	if len(a.Alerts) != 1 || a.Alerts[0].Severity != domain.SeverityCritical {
		t.Fatalf("-26%% is critical, got %v", a.Alerts)
	}
	if a.Status != domain.HealthCritical {
		t.Errorf("expected CRITICAL, got %s", a.Status)
	}
	if a.Pause != nil {
		t.Errorf("one critical above the ceiling must not pause, got %v", a.Pause.Reasons)
	}

	// Unchanged depth is not an increase.
	a = observe(t, m, 2, 0, 0, -26)
	if len(a.Alerts) != 0 {
		t.Errorf("expected no alert for a flat drawdown, got %v", a.Alerts)
	}
	if a.Status != domain.HealthCritical {
		t.Errorf("status holds while the critical alert is in the lookback, got %s", a.Status)
	}

	a = observe(t, m, 3, 0, 0, -31)
	if len(a.Alerts) != 1 || a.Alerts[0].Severity != domain.SeverityEmergency {
		t.Fatalf("past the -30%% ceiling is an emergency, got %v", a.Alerts)
	}
	if a.Pause == nil {
		t.Fatal("expected a pause recommendation")
	}
	if len(a.Pause.Reasons) != 2 {
		t.Errorf("expected emergency and ceiling reasons, got %v", a.Pause.Reasons)
	}
}

func TestRegimeChangeReachesAllKeys(t *testing.T) {
	m := newTestMonitor(t)

	observeKey(t, m, "alpha", "SOL-USD", 0, 0, 0, 0)
	observeKey(t, m, "beta", "ETH-USD", 0, 0, 0, 0)

	m.RecordRegimeChange(domain.RegimeChange{
		TimestampMs: 2 * hourMs,
		Instrument:  "SOL-USD",
		From:        domain.RegimeRanging,
		To:          domain.RegimeTrendingDown,
		Agreement:   0.8,
	})

	for _, strategy := range []string{"alpha", "beta"} {
		instrument := "SOL-USD"
		if strategy == "beta" {
			instrument = "ETH-USD"
		}
		a := observeKey(t, m, strategy, instrument, 2, 0, 0, 0)
		if len(a.Alerts) != 1 || a.Alerts[0].Type != domain.AlertRegimeChange {
			t.Fatalf("%s: expected a regime alert, got %v", strategy, a.Alerts)
		}
		if a.Alerts[0].Severity != domain.SeverityWarning {
			t.Errorf("%s: regime impact is a warning, got %s", strategy, a.Alerts[0].Severity)
		}
	}

	// The event is consumed per key; the next cycle stays quiet.
	a := observeKey(t, m, "alpha", "SOL-USD", 3, 0, 0, 0)
	if len(a.Alerts) != 0 {
		t.Errorf("expected no repeat regime alert, got %v", a.Alerts)
	}
}

func TestRegimeChangeBelowAgreementIgnored(t *testing.T) {
	m := newTestMonitor(t)

	m.RecordRegimeChange(domain.RegimeChange{
		TimestampMs: hourMs,
		From:        domain.RegimeRanging,
		To:          domain.RegimeHighVolatility,
		Agreement:   0.5,
	})

	a := observe(t, m, 1, 0, 0, 0)
	if len(a.Alerts) != 0 {
		t.Errorf("low-agreement events must not alert, got %v", a.Alerts)
	}
}

func TestStatusRecoversAfterLookback(t *testing.T) {
	m := newTestMonitor(t)

	a := observe(t, m, 0, 0, 0, -16)
	if a.Status != domain.HealthWarning {
		t.Fatalf("expected WARNING, got %s", a.Status)
	}

	// 25 hours later the warning has rolled out of the 24h lookback and
	// the unchanged depth raises nothing new.
	late, err := m.Observe(Update{
		StrategyID: "rsi_reversion",
		Instrument: "SOL-USD",
		Sample:     Sample{TimestampMs: 26 * hourMs, DrawdownPct: -16},
	})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if len(late.Alerts) != 0 {
		t.Errorf("expected no alerts, got %v", late.Alerts)
	}
	if late.Status != domain.HealthHealthy {
		t.Errorf("expected HEALTHY after eviction, got %s", late.Status)
	}
}

func TestStatusesSnapshot(t *testing.T) {
	m := newTestMonitor(t)

	observeKey(t, m, "beta", "ETH-USD", 0, 0, 0, 0)
	observeKey(t, m, "alpha", "SOL-USD", 0, 0, 0, -31)

	statuses := m.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(statuses))
	}
	if statuses[0].StrategyID != "alpha" || statuses[1].StrategyID != "beta" {
		t.Fatalf("expected sorted order, got %+v", statuses)
	}
	if statuses[0].Status != domain.HealthCritical || !statuses[0].Paused {
		t.Errorf("alpha should be critical and paused, got %+v", statuses[0])
	}
	if len(statuses[0].PauseReasons) == 0 {
		t.Error("paused pair must carry its reasons")
	}
	if statuses[1].Status != domain.HealthHealthy || statuses[1].Paused {
		t.Errorf("beta should be healthy, got %+v", statuses[1])
	}

	if s, ok := m.Status("alpha", "SOL-USD"); !ok || s != domain.HealthCritical {
		t.Errorf("Status(alpha) = %q, %v", s, ok)
	}
	if _, ok := m.Status("unknown", "SOL-USD"); ok {
		t.Error("unknown pair must not report a status")
	}
}

func TestCloseRejectsFurtherCycles(t *testing.T) {
	m := newTestMonitor(t)
	observe(t, m, 0, 0, 0, 0)

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close must be idempotent: %v", err)
	}

	_, err := m.Observe(Update{
		StrategyID: "rsi_reversion",
		Instrument: "SOL-USD",
		Sample:     Sample{TimestampMs: 2 * hourMs},
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if got := m.Statuses(); len(got) != 0 {
		t.Errorf("closed monitor retains no state, got %v", got)
	}
}

func TestObserveRequiresKey(t *testing.T) {
	m := newTestMonitor(t)

	if _, err := m.Observe(Update{Instrument: "SOL-USD"}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("missing strategy: expected ErrEmptyKey, got %v", err)
	}
	if _, err := m.Observe(Update{StrategyID: "alpha"}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("missing instrument: expected ErrEmptyKey, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero recent window", func(c *Config) { c.RecentSamples = 0 }, ErrInvalidWindow},
		{"history cap too small", func(c *Config) { c.HistoryCap = 5 }, ErrInvalidWindow},
		{"zero lookback", func(c *Config) { c.LookbackMs = 0 }, ErrInvalidWindow},
		{"zero pause count", func(c *Config) { c.PauseCriticalAlerts = 0 }, ErrInvalidWindow},
		{"positive return drop", func(c *Config) { c.ReturnDropThreshold = 10 }, ErrInvalidThreshold},
		{"ladder out of order", func(c *Config) { c.DrawdownCriticalPct = -10 }, ErrInvalidThreshold},
		{"agreement above one", func(c *Config) { c.RegimeMinAgreement = 1.5 }, ErrInvalidThreshold},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestObserveConcurrentKeys(t *testing.T) {
	m := newTestMonitor(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			strategy := fmt.Sprintf("strategy_%d", w)
			for i := 0; i < 25; i++ {
				_, err := m.Observe(Update{
					StrategyID: strategy,
					Instrument: "SOL-USD",
					Sample:     Sample{TimestampMs: int64(i+1) * hourMs},
				})
				if err != nil {
					t.Errorf("observe %s: %v", strategy, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got := len(m.Statuses()); got != 4 {
		t.Errorf("expected 4 monitored pairs, got %d", got)
	}
}

func TestHistoryStaysBounded(t *testing.T) {
	m := newTestMonitor(t)
	cap := DefaultConfig().HistoryCap

	for i := 0; i < cap+20; i++ {
		observe(t, m, i, 0, 0, 0)
	}

	m.mu.Lock()
	k := m.keys[Key{StrategyID: "rsi_reversion", Instrument: "SOL-USD"}]
	m.mu.Unlock()
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.history) != cap {
		t.Errorf("expected history trimmed to %d, got %d", cap, len(k.history))
	}
}
