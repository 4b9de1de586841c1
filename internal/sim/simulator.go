// Package sim replays a signal series against price bars through a
// long-only decimal ledger and summarizes the run into performance metrics.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/series"
)

// Simulation input errors. All are configuration mistakes detected before
// the first bar is processed.
var (
	ErrMisalignedSeries   = errors.New("signals must align one-to-one with bars")
	ErrNonPositiveCapital = errors.New("initial capital must be positive")
	ErrNonPositivePeriods = errors.New("periods per year must be positive")
)

// DefaultPeriodsPerYear annualizes hourly bars on a market that never closes.
const DefaultPeriodsPerYear = 8760

// minBars is the smallest series that yields at least one period return.
const minBars = 2

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Config holds run parameters fixed before the first bar.
type Config struct {
	InitialCapital decimal.Decimal  // starting cash, must be positive
	Frictions      domain.Frictions // execution cost model
	PeriodsPerYear float64          // bars per year, used for annualization
}

// DefaultConfig returns a run configuration for hourly bars on a liquid
// spot venue.
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(10000),
		Frictions:      domain.StandardFrictions,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
}

// Validate rejects configurations no run could use.
func (c Config) Validate() error {
	if c.InitialCapital.Sign() <= 0 {
		return ErrNonPositiveCapital
	}
	if c.PeriodsPerYear <= 0 {
		return ErrNonPositivePeriods
	}
	if err := c.Frictions.Validate(); err != nil {
		return fmt.Errorf("frictions: %w", err)
	}
	return nil
}

// Input is one complete simulation request. Bars and Signals must have the
// same length and matching timestamps. Regimes are optional context copied
// onto trade records. Params describe the strategy parameterization that
// produced the signals and feed the run identity.
type Input struct {
	Instrument string
	StrategyID string
	Bars       []domain.PriceBar
	Signals    []domain.Signal
	Regimes    []domain.RegimeSnapshot
	Params     map[string]float64
	Config     Config
}

// EquityPoint is one mark-to-market observation at a bar close.
type EquityPoint struct {
	TimestampMs int64
	Equity      float64
}

// Result holds everything one run produced. When Status is
// RunInsufficientData the metrics are zero values and Trades is empty.
type Result struct {
	RunID       string
	Instrument  string
	StrategyID  string
	Status      domain.RunStatus
	Metrics     domain.PerformanceMetrics
	Trades      []*domain.Trade
	EquityCurve []EquityPoint
}

// Run executes a long-only simulation over the bar series.
//
// On a buy signal while flat it commits MaxPositionFraction of current cash
// at the slippage-adjusted close plus fee; buys while positioned and sells
// while flat are no-ops. A sell closes the full position. A position still
// open after the last bar is force-closed at that bar and flagged
// END_OF_DATA. Identical inputs produce bit-identical results.
func Run(in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	n := len(in.Bars)
	var startMs, endMs int64
	if n > 0 {
		startMs = in.Bars[0].TimestampMs
		endMs = in.Bars[n-1].TimestampMs
	}

	res := &Result{
		RunID:       idhash.ComputeRunID(in.StrategyID, in.Instrument, startMs, endMs, fingerprint(in.Config, in.Params)),
		Instrument:  in.Instrument,
		StrategyID:  in.StrategyID,
		Status:      domain.RunOK,
		Trades:      []*domain.Trade{},
		EquityCurve: []EquityPoint{},
	}

	if n < minBars {
		res.Status = domain.RunInsufficientData
		return res, nil
	}

	led := newLedger(res.RunID, in.Instrument, in.StrategyID, in.Config)

	for i := range in.Bars {
		bar := in.Bars[i]
		switch in.Signals[i].Action() {
		case domain.ActionBuy:
			led.enter(bar, regimeLabel(bar.TimestampMs, in.Regimes))
		case domain.ActionSell:
			led.exit(bar, domain.ExitReasonSignal)
		}
		led.mark(bar)
	}

	// Anything still held is liquidated at the final close so the run
	// always ends flat.
	if led.open != nil {
		led.exit(in.Bars[n-1], domain.ExitReasonEndOfData)
		led.remark()
	}

	res.Trades = led.trades
	res.EquityCurve = led.curve
	res.Metrics = computeMetrics(led.trades, led.curve, in.Config.InitialCapital, led.cash, led.totalFees, in.Config.PeriodsPerYear)

	return res, nil
}

// validate rejects inputs that would make the run meaningless.
func validate(in Input) error {
	if err := in.Config.Validate(); err != nil {
		return err
	}
	if len(in.Signals) != len(in.Bars) {
		return fmt.Errorf("%w: %d bars, %d signals", ErrMisalignedSeries, len(in.Bars), len(in.Signals))
	}
	for i := range in.Bars {
		if in.Bars[i].TimestampMs != in.Signals[i].TimestampMs {
			return fmt.Errorf("%w: index %d has bar ts %d, signal ts %d",
				ErrMisalignedSeries, i, in.Bars[i].TimestampMs, in.Signals[i].TimestampMs)
		}
	}
	return nil
}

// fingerprint encodes everything beyond strategy, instrument and time range
// that makes two runs distinct. Params are folded in sorted key order so
// the encoding is stable.
func fingerprint(cfg Config, params map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cap=%s;fee=%g;slip=%g;frac=%g;ppy=%g",
		cfg.InitialCapital.String(),
		cfg.Frictions.FeeRate,
		cfg.Frictions.SlippageRate,
		cfg.Frictions.MaxPositionFraction,
		cfg.PeriodsPerYear,
	)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%g", k, params[k])
	}

	return b.String()
}

// regimeLabel returns the regime active at or before ts, empty if unknown.
func regimeLabel(ts int64, snaps []domain.RegimeSnapshot) string {
	snap, ok := series.RegimeAt(ts, snaps)
	if !ok {
		return ""
	}
	return snap.Regime
}

// openPosition is the state held between an entry fill and its exit fill.
type openPosition struct {
	entryTimeMs   int64
	entryPrice    decimal.Decimal
	size          decimal.Decimal
	entryNotional decimal.Decimal
	entryFee      decimal.Decimal
	regime        string
}

// ledger tracks cash and the open position through one run. All money math
// is decimal so runs reproduce exactly across platforms.
type ledger struct {
	runID      string
	instrument string
	strategyID string

	feeRate  decimal.Decimal
	slipRate decimal.Decimal
	frac     decimal.Decimal

	cash      decimal.Decimal
	totalFees decimal.Decimal
	open      *openPosition

	trades []*domain.Trade
	curve  []EquityPoint
}

func newLedger(runID, instrument, strategyID string, cfg Config) *ledger {
	return &ledger{
		runID:      runID,
		instrument: instrument,
		strategyID: strategyID,
		feeRate:    decimal.NewFromFloat(cfg.Frictions.FeeRate),
		slipRate:   decimal.NewFromFloat(cfg.Frictions.SlippageRate),
		frac:       decimal.NewFromFloat(cfg.Frictions.MaxPositionFraction),
		cash:       cfg.InitialCapital,
		totalFees:  decimal.Zero,
		trades:     make([]*domain.Trade, 0),
		curve:      make([]EquityPoint, 0),
	}
}

// enter opens a position at the slippage-adjusted close. The committed
// budget covers both the notional and the entry fee, so cash never goes
// negative. No-op while already positioned.
func (l *ledger) enter(bar domain.PriceBar, regime string) {
	if l.open != nil {
		return
	}

	budget := l.cash.Mul(l.frac)
	if budget.Sign() <= 0 {
		return
	}

	price := decimal.NewFromFloat(bar.Close).Mul(one.Add(l.slipRate))
	if price.Sign() <= 0 {
		return
	}

	notional := budget.Div(one.Add(l.feeRate))
	fee := notional.Mul(l.feeRate)
	size := notional.Div(price)

	l.cash = l.cash.Sub(notional).Sub(fee)
	l.totalFees = l.totalFees.Add(fee)
	l.open = &openPosition{
		entryTimeMs:   bar.TimestampMs,
		entryPrice:    price,
		size:          size,
		entryNotional: notional,
		entryFee:      fee,
		regime:        regime,
	}
}

// exit closes the full position at the slippage-adjusted close and records
// the round trip. No-op while flat.
func (l *ledger) exit(bar domain.PriceBar, reason string) {
	if l.open == nil {
		return
	}

	price := decimal.NewFromFloat(bar.Close).Mul(one.Sub(l.slipRate))
	exitNotional := l.open.size.Mul(price)
	exitFee := exitNotional.Mul(l.feeRate)

	l.cash = l.cash.Add(exitNotional).Sub(exitFee)
	l.totalFees = l.totalFees.Add(exitFee)

	fees := l.open.entryFee.Add(exitFee)
	pnl := exitNotional.Sub(l.open.entryNotional).Sub(fees)

	pnlPct := 0.0
	if l.open.entryNotional.Sign() > 0 {
		pnlPct, _ = pnl.Div(l.open.entryNotional).Mul(hundred).Float64()
	}

	outcome := domain.OutcomeClassLoss
	if pnl.Sign() > 0 {
		outcome = domain.OutcomeClassWin
	}

	l.trades = append(l.trades, &domain.Trade{
		TradeID:    idhash.ComputeTradeID(l.runID, l.open.entryTimeMs, len(l.trades)),
		RunID:      l.runID,
		Instrument: l.instrument,
		StrategyID: l.strategyID,

		EntryTimeMs:   l.open.entryTimeMs,
		EntryPrice:    l.open.entryPrice,
		Size:          l.open.size,
		EntryNotional: l.open.entryNotional,

		ExitTimeMs:   bar.TimestampMs,
		ExitPrice:    price,
		ExitNotional: exitNotional,
		ExitReason:   reason,

		Fees:         fees,
		PnL:          pnl,
		PnLPct:       pnlPct,
		OutcomeClass: outcome,

		HoldDurationMs: bar.TimestampMs - l.open.entryTimeMs,
		Regime:         l.open.regime,
	})

	l.open = nil
}

// mark appends one equity observation at the raw close.
func (l *ledger) mark(bar domain.PriceBar) {
	equity := l.cash
	if l.open != nil {
		equity = equity.Add(l.open.size.Mul(decimal.NewFromFloat(bar.Close)))
	}
	v, _ := equity.Float64()
	l.curve = append(l.curve, EquityPoint{TimestampMs: bar.TimestampMs, Equity: v})
}

// remark replaces the final equity observation after a forced liquidation,
// so the recorded curve reflects the exit costs.
func (l *ledger) remark() {
	if len(l.curve) == 0 {
		return
	}
	v, _ := l.cash.Float64()
	l.curve[len(l.curve)-1].Equity = v
}
