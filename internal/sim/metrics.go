package sim

import (
	"math"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

// computeMetrics summarizes a finished run. All ratios are recomputed from
// the full trade list and equity curve, never updated incrementally.
func computeMetrics(
	trades []*domain.Trade,
	curve []EquityPoint,
	initialCapital decimal.Decimal,
	finalEquity decimal.Decimal,
	totalFees decimal.Decimal,
	periodsPerYear float64,
) domain.PerformanceMetrics {
	m := domain.PerformanceMetrics{TotalTrades: len(trades)}

	for _, t := range trades {
		if t.OutcomeClass == domain.OutcomeClassWin {
			m.WinningTrades++
		} else {
			m.LosingTrades++
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}
	m.ProfitFactor = computeProfitFactor(trades)

	m.InitialCapital, _ = initialCapital.Float64()
	m.FinalEquity, _ = finalEquity.Float64()
	m.TotalFeesPaid, _ = totalFees.Float64()

	// Total return stays in decimal until the last step so a clean round
	// trip reports an exact percentage.
	if initialCapital.Sign() > 0 {
		m.TotalReturnPct, _ = finalEquity.Sub(initialCapital).Div(initialCapital).Mul(hundred).Float64()
	}
	m.AnnualizedReturnPct = computeAnnualizedReturn(m.InitialCapital, m.FinalEquity, len(curve)-1, periodsPerYear)

	returns := periodReturns(curve)
	m.SharpeRatio = computeSharpe(returns, periodsPerYear)
	m.SortinoRatio = computeSortino(returns, periodsPerYear)
	m.MaxDrawdownPct, m.MaxDrawdownBars, m.MaxDrawdownDurationMs = computeMaxDrawdown(curve)

	if len(curve) > 0 {
		m.StartTimeMs = curve[0].TimestampMs
		m.EndTimeMs = curve[len(curve)-1].TimestampMs
	}

	return m
}

// periodReturns computes simple bar-to-bar returns of the equity curve.
func periodReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// computeAnnualizedReturn scales total growth to a one-year horizon:
// ((final/initial)^(periodsPerYear/numPeriods) - 1) * 100.
func computeAnnualizedReturn(initial, final float64, numPeriods int, periodsPerYear float64) float64 {
	if numPeriods <= 0 || initial <= 0 {
		return 0
	}
	ratio := final / initial
	if ratio <= 0 {
		return -100
	}
	return (math.Pow(ratio, periodsPerYear/float64(numPeriods)) - 1) * 100
}

// computeSharpe annualizes mean/stddev of period returns by
// sqrt(periodsPerYear). A series with no variance scores 0.
func computeSharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(periodsPerYear)
}

// computeSortino is Sharpe with downside deviation in the denominator, so
// upside volatility is not penalized. A run with no losing periods scores
// +Inf when it earned anything and 0 otherwise.
func computeSortino(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := computeMean(returns)

	sumSq := 0.0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return mean / downside * math.Sqrt(periodsPerYear)
}

// computeMaxDrawdown finds the worst peak-to-trough decline on the equity
// curve and the longest underwater stretch. The percent is non-positive.
func computeMaxDrawdown(curve []EquityPoint) (pct float64, bars int, durationMs int64) {
	if len(curve) == 0 {
		return 0, 0, 0
	}

	peak := curve[0].Equity
	peakIdx := 0

	for i, p := range curve {
		if p.Equity >= peak {
			peak = p.Equity
			peakIdx = i
			continue
		}
		if peak > 0 {
			dd := (p.Equity - peak) / peak * 100
			if dd < pct {
				pct = dd
			}
		}
		if under := i - peakIdx; under > bars {
			bars = under
			durationMs = p.TimestampMs - curve[peakIdx].TimestampMs
		}
	}

	return pct, bars, durationMs
}

// computeProfitFactor divides gross gains by gross losses across closed
// trades. No losing trades means +Inf when there were gains, 0 otherwise.
func computeProfitFactor(trades []*domain.Trade) float64 {
	gains := decimal.Zero
	losses := decimal.Zero
	for _, t := range trades {
		if t.PnL.Sign() > 0 {
			gains = gains.Add(t.PnL)
		} else {
			losses = losses.Add(t.PnL.Neg())
		}
	}
	if losses.Sign() == 0 {
		if gains.Sign() > 0 {
			return math.Inf(1)
		}
		return 0
	}
	pf, _ := gains.Div(losses).Float64()
	return pf
}

// computeMean calculates arithmetic mean of returns.
func computeMean(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	return sum / float64(len(returns))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(returns []float64, mean float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
