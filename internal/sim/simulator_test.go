package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

const hourMs = int64(3600000)

// makeBars builds hourly bars where every price field equals the close.
func makeBars(closes ...float64) []domain.PriceBar {
	out := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = domain.PriceBar{
			TimestampMs: int64(i+1) * hourMs,
			Open:        c,
			High:        c,
			Low:         c,
			Close:       c,
			Volume:      1000,
		}
	}
	return out
}

// makeSignals aligns one action per bar; missing trailing actions are holds.
func makeSignals(bars []domain.PriceBar, actions ...string) []domain.Signal {
	out := make([]domain.Signal, len(bars))
	for i := range bars {
		s := domain.Signal{TimestampMs: bars[i].TimestampMs, Confidence: 80}
		if i < len(actions) {
			switch actions[i] {
			case domain.ActionBuy:
				s.Buy = true
			case domain.ActionSell:
				s.Sell = true
			}
		}
		out[i] = s
	}
	return out
}

func zeroFrictionConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(10000),
		Frictions:      domain.ZeroFrictions,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
}

func TestRunRisingSeriesRoundTrip(t *testing.T) {
	// Buy and hold from 100 to 110 with no frictions: exactly +10%.
	b := makeBars(100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110)
	s := makeSignals(b, domain.ActionBuy)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Status != domain.RunOK {
		t.Fatalf("expected status ok, got %s", res.Status)
	}
	if res.Metrics.TotalReturnPct != 10.0 {
		t.Errorf("expected exactly +10%% total return, got %v", res.Metrics.TotalReturnPct)
	}
	if res.Metrics.TotalTrades != 1 {
		t.Fatalf("expected 1 trade, got %d", res.Metrics.TotalTrades)
	}
	if res.Metrics.WinRate != 1.0 {
		t.Errorf("expected win rate 1.0, got %v", res.Metrics.WinRate)
	}
	if !math.IsInf(res.Metrics.ProfitFactor, 1) {
		t.Errorf("expected +Inf profit factor with no losses, got %v", res.Metrics.ProfitFactor)
	}
	if !math.IsInf(res.Metrics.SortinoRatio, 1) {
		t.Errorf("expected +Inf sortino with no losing periods, got %v", res.Metrics.SortinoRatio)
	}
	if res.Metrics.FinalEquity != 11000 {
		t.Errorf("expected final equity 11000, got %v", res.Metrics.FinalEquity)
	}
	if res.Metrics.TotalFeesPaid != 0 {
		t.Errorf("expected zero fees, got %v", res.Metrics.TotalFeesPaid)
	}

	trade := res.Trades[0]
	if trade.ExitReason != domain.ExitReasonEndOfData {
		t.Errorf("expected END_OF_DATA exit, got %s", trade.ExitReason)
	}
	if !trade.PnL.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected PnL exactly 1000, got %s", trade.PnL)
	}
	if trade.OutcomeClass != domain.OutcomeClassWin {
		t.Errorf("expected WIN, got %s", trade.OutcomeClass)
	}
	if trade.HoldDurationMs != 10*hourMs {
		t.Errorf("expected hold of 10 bars, got %d ms", trade.HoldDurationMs)
	}
}

func TestRunEmptySeries(t *testing.T) {
	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Status != domain.RunInsufficientData {
		t.Errorf("expected insufficient_data status, got %s", res.Status)
	}
	if len(res.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(res.Trades))
	}
	if res.Metrics != (domain.PerformanceMetrics{}) {
		t.Errorf("expected zero-value metrics, got %+v", res.Metrics)
	}
	if res.RunID == "" {
		t.Error("expected run id even for an empty run")
	}
}

func TestRunSingleBar(t *testing.T) {
	b := makeBars(100)
	s := makeSignals(b, domain.ActionBuy)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != domain.RunInsufficientData {
		t.Errorf("expected insufficient_data for a single bar, got %s", res.Status)
	}
}

func TestRunDeterministic(t *testing.T) {
	b := makeBars(100, 104, 98, 103, 110, 95, 101, 108)
	s := makeSignals(b, domain.ActionBuy, "", domain.ActionSell, domain.ActionBuy, "", domain.ActionSell, domain.ActionBuy)

	cfg := Config{
		InitialCapital: decimal.NewFromInt(25000),
		Frictions:      domain.StandardFrictions,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
	in := Input{Instrument: "SOL-USD", StrategyID: "macd_cross", Bars: b, Signals: s, Config: cfg}

	first, err := Run(in)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := Run(in)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.RunID != second.RunID {
		t.Errorf("run ids differ: %s vs %s", first.RunID, second.RunID)
	}
	if first.Metrics != second.Metrics {
		t.Errorf("metrics differ between identical runs:\n%+v\n%+v", first.Metrics, second.Metrics)
	}
	if len(first.Trades) != len(second.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(first.Trades), len(second.Trades))
	}
	for i := range first.Trades {
		if first.Trades[i].TradeID != second.Trades[i].TradeID {
			t.Errorf("trade %d ids differ", i)
		}
		if !first.Trades[i].PnL.Equal(second.Trades[i].PnL) {
			t.Errorf("trade %d PnL differs: %s vs %s", i, first.Trades[i].PnL, second.Trades[i].PnL)
		}
	}
	for i := range first.EquityCurve {
		if first.EquityCurve[i] != second.EquityCurve[i] {
			t.Errorf("equity point %d differs", i)
		}
	}
}

func TestRunParamsChangeRunID(t *testing.T) {
	b := makeBars(100, 101, 102)
	s := makeSignals(b)
	in := Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()}

	plain, err := Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	in.Params = map[string]float64{"buy_below": 25}
	tuned, err := Run(in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if plain.RunID == tuned.RunID {
		t.Error("expected different run ids for different params")
	}
}

func TestRunBuyWhilePositionedIgnored(t *testing.T) {
	b := makeBars(100, 102, 104, 106, 108)
	s := makeSignals(b, domain.ActionBuy, domain.ActionBuy, domain.ActionBuy, domain.ActionSell)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].EntryTimeMs != b[0].TimestampMs {
		t.Errorf("expected entry at first bar, got %d", res.Trades[0].EntryTimeMs)
	}
	if res.Trades[0].ExitReason != domain.ExitReasonSignal {
		t.Errorf("expected SIGNAL_EXIT, got %s", res.Trades[0].ExitReason)
	}
}

func TestRunSellWhileFlatIgnored(t *testing.T) {
	b := makeBars(100, 102, 104)
	s := makeSignals(b, domain.ActionSell, domain.ActionSell)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(res.Trades))
	}
	if res.Status != domain.RunOK {
		t.Errorf("expected status ok, got %s", res.Status)
	}
	if res.Metrics.FinalEquity != 10000 {
		t.Errorf("expected untouched capital, got %v", res.Metrics.FinalEquity)
	}
	if res.Metrics.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0 with no trades, got %v", res.Metrics.ProfitFactor)
	}
}

func TestRunSignalExitStopsExposure(t *testing.T) {
	// After the sell at bar 2 the equity must ignore later price moves.
	b := makeBars(100, 110, 120, 50, 10)
	s := makeSignals(b, domain.ActionBuy, "", domain.ActionSell)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	n := len(res.EquityCurve)
	if res.EquityCurve[n-1].Equity != res.EquityCurve[2].Equity {
		t.Errorf("equity moved after flat: %v vs %v", res.EquityCurve[n-1].Equity, res.EquityCurve[2].Equity)
	}
	if res.Metrics.FinalEquity != 12000 {
		t.Errorf("expected 12000 after exit at 120, got %v", res.Metrics.FinalEquity)
	}
}

func TestRunFrictionsProduceLoss(t *testing.T) {
	// Flat prices: the round trip can only lose the fees and slippage.
	b := makeBars(100, 100, 100, 100)
	s := makeSignals(b, domain.ActionBuy, "", domain.ActionSell)

	cfg := Config{
		InitialCapital: decimal.NewFromInt(10000),
		Frictions:      domain.StandardFrictions,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: cfg})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].PnL.Sign() >= 0 {
		t.Errorf("expected negative PnL on flat prices with frictions, got %s", res.Trades[0].PnL)
	}
	if res.Trades[0].OutcomeClass != domain.OutcomeClassLoss {
		t.Errorf("expected LOSS, got %s", res.Trades[0].OutcomeClass)
	}
	if res.Metrics.TotalFeesPaid <= 0 {
		t.Errorf("expected positive fees, got %v", res.Metrics.TotalFeesPaid)
	}
	if res.Metrics.WinRate != 0 {
		t.Errorf("expected win rate 0, got %v", res.Metrics.WinRate)
	}
	if res.Metrics.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0 with only losses, got %v", res.Metrics.ProfitFactor)
	}
	if res.Metrics.FinalEquity >= 10000 {
		t.Errorf("expected equity below initial capital, got %v", res.Metrics.FinalEquity)
	}
}

func TestRunMaxDrawdown(t *testing.T) {
	// Equity tracks price times size 100: peak 12000, trough 9000 -> -25%.
	b := makeBars(100, 120, 90, 95, 130)
	s := makeSignals(b, domain.ActionBuy)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Metrics.MaxDrawdownPct != -25.0 {
		t.Errorf("expected -25%% drawdown, got %v", res.Metrics.MaxDrawdownPct)
	}
	if res.Metrics.MaxDrawdownBars != 2 {
		t.Errorf("expected 2 bars underwater, got %d", res.Metrics.MaxDrawdownBars)
	}
	if res.Metrics.MaxDrawdownDurationMs != 2*hourMs {
		t.Errorf("expected 2h underwater, got %d ms", res.Metrics.MaxDrawdownDurationMs)
	}
}

func TestRunRegimeOnTrade(t *testing.T) {
	b := makeBars(100, 105, 110)
	s := makeSignals(b, domain.ActionBuy, "", domain.ActionSell)
	regimes := []domain.RegimeSnapshot{
		{TimestampMs: b[0].TimestampMs, Instrument: "SOL-USD", Regime: domain.RegimeTrendingUp, Confidence: 0.75},
	}

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Regimes: regimes, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].Regime != domain.RegimeTrendingUp {
		t.Errorf("expected trending_up regime on trade, got %q", res.Trades[0].Regime)
	}
}

func TestRunMixedOutcomes(t *testing.T) {
	// Win (100 -> 110), then loss (120 -> 100).
	b := makeBars(100, 110, 120, 100)
	s := makeSignals(b, domain.ActionBuy, domain.ActionSell, domain.ActionBuy, domain.ActionSell)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Metrics.TotalTrades != 2 {
		t.Fatalf("expected 2 trades, got %d", res.Metrics.TotalTrades)
	}
	if res.Metrics.WinningTrades != 1 || res.Metrics.LosingTrades != 1 {
		t.Errorf("expected 1 win and 1 loss, got %d/%d", res.Metrics.WinningTrades, res.Metrics.LosingTrades)
	}
	if res.Metrics.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %v", res.Metrics.WinRate)
	}
	pf := res.Metrics.ProfitFactor
	if pf <= 0 || math.IsInf(pf, 1) {
		t.Errorf("expected finite positive profit factor, got %v", pf)
	}
	if res.Trades[0].PnLPct <= 0 {
		t.Errorf("expected positive PnL%% on the win, got %v", res.Trades[0].PnLPct)
	}
	if res.Trades[1].PnLPct >= 0 {
		t.Errorf("expected negative PnL%% on the loss, got %v", res.Trades[1].PnLPct)
	}
}

func TestRunMisalignedLength(t *testing.T) {
	b := makeBars(100, 101, 102)
	s := makeSignals(b)[:2]

	_, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if !errors.Is(err, ErrMisalignedSeries) {
		t.Errorf("expected ErrMisalignedSeries, got %v", err)
	}
}

func TestRunMisalignedTimestamps(t *testing.T) {
	b := makeBars(100, 101, 102)
	s := makeSignals(b)
	s[1].TimestampMs++

	_, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if !errors.Is(err, ErrMisalignedSeries) {
		t.Errorf("expected ErrMisalignedSeries, got %v", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	b := makeBars(100, 101)
	s := makeSignals(b)

	cfg := zeroFrictionConfig()
	cfg.InitialCapital = decimal.Zero
	if _, err := Run(Input{Bars: b, Signals: s, Config: cfg}); !errors.Is(err, ErrNonPositiveCapital) {
		t.Errorf("expected ErrNonPositiveCapital, got %v", err)
	}

	cfg = zeroFrictionConfig()
	cfg.PeriodsPerYear = 0
	if _, err := Run(Input{Bars: b, Signals: s, Config: cfg}); !errors.Is(err, ErrNonPositivePeriods) {
		t.Errorf("expected ErrNonPositivePeriods, got %v", err)
	}

	cfg = zeroFrictionConfig()
	cfg.Frictions.FeeRate = -0.001
	if _, err := Run(Input{Bars: b, Signals: s, Config: cfg}); !errors.Is(err, domain.ErrNegativeFee) {
		t.Errorf("expected wrapped ErrNegativeFee, got %v", err)
	}
}

func TestRunForceCloseRecordsLastBar(t *testing.T) {
	b := makeBars(100, 105, 111)
	s := makeSignals(b, "", domain.ActionBuy)

	res, err := Run(Input{Instrument: "SOL-USD", StrategyID: "rsi_reversion", Bars: b, Signals: s, Config: zeroFrictionConfig()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	trade := res.Trades[0]
	if trade.ExitReason != domain.ExitReasonEndOfData {
		t.Errorf("expected END_OF_DATA, got %s", trade.ExitReason)
	}
	if trade.ExitTimeMs != b[2].TimestampMs {
		t.Errorf("expected exit at last bar, got %d", trade.ExitTimeMs)
	}
	last := res.EquityCurve[len(res.EquityCurve)-1].Equity
	if last != res.Metrics.FinalEquity {
		t.Errorf("final equity point %v does not match metrics %v", last, res.Metrics.FinalEquity)
	}
}
