package sim

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

func curveOf(equities ...float64) []EquityPoint {
	out := make([]EquityPoint, len(equities))
	for i, e := range equities {
		out[i] = EquityPoint{TimestampMs: int64(i+1) * hourMs, Equity: e}
	}
	return out
}

func TestPeriodReturns(t *testing.T) {
	returns := periodReturns(curveOf(100, 110, 99))

	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-0.1) > 1e-12 {
		t.Errorf("expected 0.1, got %v", returns[0])
	}
	if math.Abs(returns[1]-(-0.1)) > 1e-12 {
		t.Errorf("expected -0.1, got %v", returns[1])
	}
}

func TestPeriodReturnsShortCurve(t *testing.T) {
	if periodReturns(nil) != nil {
		t.Error("expected nil for empty curve")
	}
	if periodReturns(curveOf(100)) != nil {
		t.Error("expected nil for single point")
	}
}

func TestComputeSharpeZeroVariance(t *testing.T) {
	// 0.5 is exactly representable, so the variance is exactly zero.
	returns := []float64{0.5, 0.5, 0.5}
	if got := computeSharpe(returns, DefaultPeriodsPerYear); got != 0 {
		t.Errorf("expected 0 for zero variance, got %v", got)
	}
}

func TestComputeSharpeSign(t *testing.T) {
	up := computeSharpe([]float64{0.01, 0.02, 0.015, 0.005}, DefaultPeriodsPerYear)
	if up <= 0 {
		t.Errorf("expected positive sharpe for positive returns, got %v", up)
	}

	down := computeSharpe([]float64{-0.01, -0.02, -0.015, -0.005}, DefaultPeriodsPerYear)
	if down >= 0 {
		t.Errorf("expected negative sharpe for negative returns, got %v", down)
	}
}

func TestComputeSortinoNoDownside(t *testing.T) {
	if got := computeSortino([]float64{0.01, 0.02}, DefaultPeriodsPerYear); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf with gains and no losing periods, got %v", got)
	}
	if got := computeSortino([]float64{0, 0}, DefaultPeriodsPerYear); got != 0 {
		t.Errorf("expected 0 with no gains and no losing periods, got %v", got)
	}
}

func TestComputeSortinoIgnoresUpside(t *testing.T) {
	// Same downside, wildly different upside: sortino must rank the
	// higher-mean series above, unlike a stddev denominator would.
	calm := []float64{0.01, -0.01, 0.01, -0.01}
	spiky := []float64{0.10, -0.01, 0.10, -0.01}

	if computeSortino(spiky, DefaultPeriodsPerYear) <= computeSortino(calm, DefaultPeriodsPerYear) {
		t.Error("expected higher sortino for the higher-mean series")
	}
}

func TestComputeMaxDrawdownFlat(t *testing.T) {
	pct, bars, durationMs := computeMaxDrawdown(curveOf(100, 100, 100))
	if pct != 0 || bars != 0 || durationMs != 0 {
		t.Errorf("expected no drawdown on a flat curve, got %v/%d/%d", pct, bars, durationMs)
	}
}

func TestComputeMaxDrawdownRecovery(t *testing.T) {
	// Peak 120 at index 1, trough 90, recovery above peak at index 4.
	pct, bars, durationMs := computeMaxDrawdown(curveOf(100, 120, 90, 110, 125))

	if pct != -25.0 {
		t.Errorf("expected -25%%, got %v", pct)
	}
	if bars != 2 {
		t.Errorf("expected 2 bars underwater, got %d", bars)
	}
	if durationMs != 2*hourMs {
		t.Errorf("expected 2h underwater, got %d", durationMs)
	}
}

func TestComputeMaxDrawdownNoRecovery(t *testing.T) {
	// Underwater from index 1 through the end.
	pct, bars, durationMs := computeMaxDrawdown(curveOf(100, 90, 80, 85))

	if pct != -20.0 {
		t.Errorf("expected -20%%, got %v", pct)
	}
	if bars != 3 {
		t.Errorf("expected 3 bars underwater, got %d", bars)
	}
	if durationMs != 3*hourMs {
		t.Errorf("expected 3h underwater, got %d", durationMs)
	}
}

func TestComputeProfitFactor(t *testing.T) {
	trade := func(pnl int64) *domain.Trade {
		return &domain.Trade{PnL: decimal.NewFromInt(pnl)}
	}

	if got := computeProfitFactor(nil); got != 0 {
		t.Errorf("expected 0 with no trades, got %v", got)
	}
	if got := computeProfitFactor([]*domain.Trade{trade(100), trade(50)}); !math.IsInf(got, 1) {
		t.Errorf("expected +Inf with no losses, got %v", got)
	}
	if got := computeProfitFactor([]*domain.Trade{trade(-100)}); got != 0 {
		t.Errorf("expected 0 with only losses, got %v", got)
	}
	if got := computeProfitFactor([]*domain.Trade{trade(100), trade(-50)}); got != 2.0 {
		t.Errorf("expected 2.0, got %v", got)
	}
}

func TestComputeAnnualizedReturn(t *testing.T) {
	// Growth over exactly one year of periods annualizes to itself.
	got := computeAnnualizedReturn(100, 110, DefaultPeriodsPerYear, DefaultPeriodsPerYear)
	if math.Abs(got-10.0) > 1e-9 {
		t.Errorf("expected ~10%%, got %v", got)
	}

	// Half a year of periods compounds the growth.
	got = computeAnnualizedReturn(100, 110, DefaultPeriodsPerYear/2, DefaultPeriodsPerYear)
	want := (math.Pow(1.1, 2) - 1) * 100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected ~%v, got %v", want, got)
	}

	if computeAnnualizedReturn(100, 110, 0, DefaultPeriodsPerYear) != 0 {
		t.Error("expected 0 for zero periods")
	}
}

func TestComputeStddevSmallSamples(t *testing.T) {
	if computeStddev(nil, 0) != 0 {
		t.Error("expected 0 for empty input")
	}
	if computeStddev([]float64{0.5}, 0.5) != 0 {
		t.Error("expected 0 for a single sample")
	}
}
