// Package monitor tracks rolling per-strategy performance and raises
// alerts when it degrades. A Monitor owns all mutable monitoring state:
// create it with New, feed one Update per cycle per monitored pair,
// tear it down with Close.
package monitor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategy-lab/internal/domain"
)

// Configuration errors returned eagerly by New.
var (
	ErrClosed           = errors.New("monitor is closed")
	ErrEmptyKey         = errors.New("strategy and instrument must be set")
	ErrInvalidWindow    = errors.New("sample windows must be positive")
	ErrInvalidThreshold = errors.New("degradation thresholds must be negative")
)

// Config tunes the alert rules and the pause policy. Thresholds that
// describe drops or drawdowns are negative numbers.
type Config struct {
	RecentSamples   int // samples in the recent comparison window
	BaselineSamples int // samples in the baseline window preceding it

	ReturnDropThreshold float64 // mean-return drop (points) firing degradation, < 0
	SharpeDropThreshold float64 // mean-Sharpe drop firing degradation, < 0

	DrawdownWarningPct  float64 // drawdown depth raising a warning
	DrawdownCriticalPct float64 // depth escalating to critical
	DrawdownCeilingPct  float64 // hard ceiling; deeper alerts are emergencies

	RegimeMinAgreement float64 // minimum agreement for a regime event to count, 0..1

	PauseCriticalAlerts int     // critical alerts within the lookback that force a pause
	PauseDropThreshold  float64 // performance drop (points) that forces a pause, < 0

	LookbackMs int64 // alert retention and status window, milliseconds
	HistoryCap int   // performance samples retained per key
}

// DefaultConfig returns the standard monitoring thresholds.
func DefaultConfig() Config {
	return Config{
		RecentSamples:       3,
		BaselineSamples:     11,
		ReturnDropThreshold: -10,
		SharpeDropThreshold: -0.5,
		DrawdownWarningPct:  -15,
		DrawdownCriticalPct: -25,
		DrawdownCeilingPct:  -30,
		RegimeMinAgreement:  0.7,
		PauseCriticalAlerts: 3,
		PauseDropThreshold:  -25,
		LookbackMs:          24 * 60 * 60 * 1000,
		HistoryCap:          168,
	}
}

// Validate checks the configuration before any state is built.
func (c Config) Validate() error {
	if c.RecentSamples < 1 || c.BaselineSamples < 1 {
		return fmt.Errorf("%w: recent=%d baseline=%d", ErrInvalidWindow, c.RecentSamples, c.BaselineSamples)
	}
	if c.HistoryCap < c.RecentSamples+c.BaselineSamples {
		return fmt.Errorf("%w: history cap %d below the %d samples the rules need",
			ErrInvalidWindow, c.HistoryCap, c.RecentSamples+c.BaselineSamples)
	}
	if c.LookbackMs <= 0 {
		return fmt.Errorf("%w: lookback %dms", ErrInvalidWindow, c.LookbackMs)
	}
	if c.PauseCriticalAlerts < 1 {
		return fmt.Errorf("%w: pause critical count %d", ErrInvalidWindow, c.PauseCriticalAlerts)
	}
	if c.ReturnDropThreshold >= 0 || c.SharpeDropThreshold >= 0 || c.PauseDropThreshold >= 0 {
		return fmt.Errorf("%w: return=%g sharpe=%g pause=%g",
			ErrInvalidThreshold, c.ReturnDropThreshold, c.SharpeDropThreshold, c.PauseDropThreshold)
	}
	if c.DrawdownWarningPct >= 0 || c.DrawdownCriticalPct >= c.DrawdownWarningPct ||
		c.DrawdownCeilingPct >= c.DrawdownCriticalPct {
		return fmt.Errorf("%w: drawdown ladder warning=%g critical=%g ceiling=%g",
			ErrInvalidThreshold, c.DrawdownWarningPct, c.DrawdownCriticalPct, c.DrawdownCeilingPct)
	}
	if c.RegimeMinAgreement <= 0 || c.RegimeMinAgreement > 1 {
		return fmt.Errorf("%w: regime agreement %g outside (0, 1]", ErrInvalidThreshold, c.RegimeMinAgreement)
	}
	return nil
}

// Key identifies one monitored (strategy, instrument) pair.
type Key struct {
	StrategyID string
	Instrument string
}

// Sample is one performance observation for a monitored pair, typically
// taken from the latest simulation run of a monitoring cycle.
type Sample struct {
	TimestampMs int64   // observation time
	ReturnPct   float64 // rolling total return, percent
	Sharpe      float64 // rolling Sharpe ratio
	DrawdownPct float64 // current max drawdown, <= 0
}

// Update carries one cycle's sample for one monitored pair. Updates for
// the same pair must arrive in timestamp order.
type Update struct {
	StrategyID string
	Instrument string
	Sample     Sample
}

// Assessment is the outcome of one monitoring cycle. Alerts carries only
// the alerts fired by this cycle; Pause is nil when no pause is
// recommended.
type Assessment struct {
	StrategyID  string
	Instrument  string
	TimestampMs int64
	Status      string
	Alerts      []domain.Alert
	Pause       *domain.PauseRecommendation
}

// Monitor holds per-key performance history, the rolling alert log and
// the global regime event feed. Updates for one key are serialized by a
// per-key lock; different keys do not contend.
type Monitor struct {
	cfg    Config
	logger *zap.Logger

	mu           sync.Mutex
	keys         map[Key]*keyState
	regimeEvents []domain.RegimeChange
	closed       bool
}

// keyState is the mutable state of one monitored pair.
type keyState struct {
	mu             sync.Mutex
	history        []Sample
	alerts         []domain.Alert
	status         string
	lastPause      *domain.PauseRecommendation
	updatedMs      int64
	regimeCursorMs int64
}

// New builds a Monitor from cfg. The logger may be nil.
func New(cfg Config, logger *zap.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:    cfg,
		logger: logger,
		keys:   make(map[Key]*keyState),
	}, nil
}

// Observe runs one monitoring cycle for the pair in u: it appends the
// sample to the pair's history, evaluates every registered alert rule,
// recomputes the health status from the alerts remaining in the
// lookback and derives the pause recommendation. The returned
// Assessment carries only the alerts fired by this cycle.
func (m *Monitor) Observe(u Update) (Assessment, error) {
	if u.StrategyID == "" || u.Instrument == "" {
		return Assessment{}, fmt.Errorf("%w: strategy=%q instrument=%q", ErrEmptyKey, u.StrategyID, u.Instrument)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Assessment{}, ErrClosed
	}
	key := Key{StrategyID: u.StrategyID, Instrument: u.Instrument}
	k, ok := m.keys[key]
	if !ok {
		k = &keyState{status: domain.HealthHealthy}
		m.keys[key] = k
	}
	events := append([]domain.RegimeChange(nil), m.regimeEvents...)
	m.mu.Unlock()

	k.mu.Lock()
	defer k.mu.Unlock()

	nowMs := u.Sample.TimestampMs

	k.history = append(k.history, u.Sample)
	if len(k.history) > m.cfg.HistoryCap {
		k.history = k.history[len(k.history)-m.cfg.HistoryCap:]
	}

	var pending []domain.RegimeChange
	for _, ev := range events {
		if ev.TimestampMs > k.regimeCursorMs {
			pending = append(pending, ev)
		}
	}

	state := cycleState{history: k.history, regimeEvents: pending}
	var fired []domain.Alert
	for _, r := range ruleTable {
		for _, a := range r.eval(m.cfg, state) {
			a.ID = uuid.NewString()
			a.TimestampMs = nowMs
			a.StrategyID = u.StrategyID
			a.Instrument = u.Instrument
			fired = append(fired, a)

			m.logger.Warn("alert fired",
				zap.String("strategy", u.StrategyID),
				zap.String("instrument", u.Instrument),
				zap.String("rule", r.name),
				zap.String("severity", a.Severity),
				zap.String("message", a.Message),
			)
		}
	}
	if len(pending) > 0 {
		k.regimeCursorMs = pending[len(pending)-1].TimestampMs
	}

	k.alerts = append(k.alerts, fired...)
	cutoff := nowMs - m.cfg.LookbackMs
	i := 0
	for i < len(k.alerts) && k.alerts[i].TimestampMs <= cutoff {
		i++
	}
	k.alerts = k.alerts[i:]

	k.status = statusOf(k.alerts)
	k.updatedMs = nowMs

	pause := m.recommendPause(k, u, nowMs)
	k.lastPause = pause
	if pause != nil {
		m.logger.Warn("pause recommended",
			zap.String("strategy", u.StrategyID),
			zap.String("instrument", u.Instrument),
			zap.Strings("reasons", pause.Reasons),
		)
	}

	return Assessment{
		StrategyID:  u.StrategyID,
		Instrument:  u.Instrument,
		TimestampMs: nowMs,
		Status:      k.status,
		Alerts:      fired,
		Pause:       pause,
	}, nil
}

// RecordRegimeChange publishes a regime transition to every monitored
// pair. Events below the agreement threshold are ignored; each pair
// raises its regime alert on its next cycle.
func (m *Monitor) RecordRegimeChange(change domain.RegimeChange) {
	if change.Agreement < m.cfg.RegimeMinAgreement {
		m.logger.Debug("regime change below agreement threshold",
			zap.String("from", change.From),
			zap.String("to", change.To),
			zap.Float64("agreement", change.Agreement),
		)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.regimeEvents = append(m.regimeEvents, change)
	cutoff := change.TimestampMs - m.cfg.LookbackMs
	i := 0
	for i < len(m.regimeEvents) && m.regimeEvents[i].TimestampMs <= cutoff {
		i++
	}
	m.regimeEvents = m.regimeEvents[i:]

	m.logger.Info("regime change recorded",
		zap.String("instrument", change.Instrument),
		zap.String("from", change.From),
		zap.String("to", change.To),
		zap.Float64("agreement", change.Agreement),
	)
}

// Status returns the current health of one pair.
func (m *Monitor) Status(strategyID, instrument string) (string, bool) {
	m.mu.Lock()
	k, ok := m.keys[Key{StrategyID: strategyID, Instrument: instrument}]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status, true
}

// Statuses snapshots every monitored pair, ordered by strategy then
// instrument.
func (m *Monitor) Statuses() []domain.HealthStatus {
	type entry struct {
		key   Key
		state *keyState
	}

	m.mu.Lock()
	entries := make([]entry, 0, len(m.keys))
	for key, k := range m.keys {
		entries = append(entries, entry{key: key, state: k})
	}
	m.mu.Unlock()

	out := make([]domain.HealthStatus, 0, len(entries))
	for _, e := range entries {
		e.state.mu.Lock()
		hs := domain.HealthStatus{
			StrategyID: e.key.StrategyID,
			Instrument: e.key.Instrument,
			Status:     e.state.status,
			UpdatedMs:  e.state.updatedMs,
		}
		if e.state.lastPause != nil {
			hs.Paused = true
			hs.PauseReasons = append([]string(nil), e.state.lastPause.Reasons...)
		}
		e.state.mu.Unlock()
		out = append(out, hs)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StrategyID != out[j].StrategyID {
			return out[i].StrategyID < out[j].StrategyID
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}

// Close tears the monitor down and releases all per-key state. Further
// observations return ErrClosed. Close is idempotent.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.keys = nil
	m.regimeEvents = nil
	return nil
}

// statusOf derives the health status from the alerts remaining in the
// lookback. Critical and emergency alerts both mark the pair CRITICAL.
func statusOf(alerts []domain.Alert) string {
	worst := 0
	for _, a := range alerts {
		if r := domain.SeverityRank(a.Severity); r > worst {
			worst = r
		}
	}
	switch {
	case worst >= domain.SeverityRank(domain.SeverityCritical):
		return domain.HealthCritical
	case worst >= domain.SeverityRank(domain.SeverityWarning):
		return domain.HealthWarning
	default:
		return domain.HealthHealthy
	}
}

// recommendPause checks every pause condition over the lookback and
// returns all matched reasons, or nil when none matched.
func (m *Monitor) recommendPause(k *keyState, u Update, nowMs int64) *domain.PauseRecommendation {
	cutoff := nowMs - m.cfg.LookbackMs

	emergencies, criticals := 0, 0
	worstDrop := 0.0
	for _, a := range k.alerts {
		switch a.Severity {
		case domain.SeverityEmergency:
			emergencies++
		case domain.SeverityCritical:
			criticals++
		}
		if a.Type == domain.AlertPerformanceDegradation {
			if drop, ok := a.Metrics["drop"]; ok && drop < worstDrop {
				worstDrop = drop
			}
		}
	}

	worstDrawdown := 0.0
	for _, s := range k.history {
		if s.TimestampMs > cutoff && s.DrawdownPct < worstDrawdown {
			worstDrawdown = s.DrawdownPct
		}
	}

	var reasons []string
	if emergencies > 0 {
		reasons = append(reasons, fmt.Sprintf("%d emergency alerts within lookback", emergencies))
	}
	if criticals >= m.cfg.PauseCriticalAlerts {
		reasons = append(reasons, fmt.Sprintf("%d critical alerts within lookback", criticals))
	}
	if worstDrop < m.cfg.PauseDropThreshold {
		reasons = append(reasons, fmt.Sprintf("performance drop of %.1f points within lookback", -worstDrop))
	}
	if worstDrawdown < m.cfg.DrawdownCeilingPct {
		reasons = append(reasons, fmt.Sprintf("drawdown %.1f%% beyond the %.1f%% ceiling", worstDrawdown, m.cfg.DrawdownCeilingPct))
	}
	if len(reasons) == 0 {
		return nil
	}

	return &domain.PauseRecommendation{
		TimestampMs: nowMs,
		StrategyID:  u.StrategyID,
		Instrument:  u.Instrument,
		Reasons:     reasons,
	}
}
