package monitor

import (
	"math"

	"strategy-lab/internal/domain"
)

// SampleFromTrades condenses a key's recent closed trades into one
// performance sample. The returned bool is false when there are no trades
// to summarize; such keys are skipped for the cycle rather than scored at
// zero.
//
// Returns compound per-trade PnL percentages; the Sharpe here is the
// per-trade mean over stddev, unannualized. The monitor only compares
// samples against each other, so the scale just has to be consistent
// cycle to cycle.
func SampleFromTrades(trades []*domain.Trade, nowMs int64) (Sample, bool) {
	if len(trades) == 0 {
		return Sample{}, false
	}

	equity := 1.0
	peak := 1.0
	maxDrawdown := 0.0

	var sum, sumSq float64
	for _, t := range trades {
		pct := t.PnLPct
		sum += pct
		sumSq += pct * pct

		equity *= 1 + pct/100
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (equity - peak) / peak * 100
			if dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	n := float64(len(trades))
	mean := sum / n

	sharpe := 0.0
	if len(trades) > 1 {
		variance := (sumSq - sum*sum/n) / (n - 1)
		if variance > 0 {
			sharpe = mean / math.Sqrt(variance)
		}
	}

	return Sample{
		TimestampMs: nowMs,
		ReturnPct:   (equity - 1) * 100,
		Sharpe:      sharpe,
		DrawdownPct: maxDrawdown,
	}, true
}
