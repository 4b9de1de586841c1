package signal

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// EnsembleName is the registered name of the regime-weighted ensemble.
const EnsembleName = "ensemble"

// regimeWeights is the fixed regime -> base-strategy weight table. Trend
// followers are favored in trending regimes, reversion strategies in
// ranging markets. Unknown or insufficient-data regimes weigh every base
// at 1.0.
var regimeWeights = map[string]map[string]float64{
	domain.RegimeTrendingUp: {
		"ma_trend": 1.3, "macd_cross": 1.2, "rsi_reversion": 0.7, "bollinger_reversion": 0.7,
	},
	domain.RegimeTrendingDown: {
		"ma_trend": 1.3, "macd_cross": 1.2, "rsi_reversion": 0.7, "bollinger_reversion": 0.7,
	},
	domain.RegimeRanging: {
		"ma_trend": 0.6, "macd_cross": 0.8, "rsi_reversion": 1.3, "bollinger_reversion": 1.3,
	},
	domain.RegimeHighVolatility: {
		"ma_trend": 0.8, "macd_cross": 0.8, "rsi_reversion": 0.9, "bollinger_reversion": 1.1,
	},
	domain.RegimeLowVolatility: {
		"ma_trend": 1.1, "macd_cross": 1.0, "rsi_reversion": 1.0, "bollinger_reversion": 1.0,
	},
}

// baseWeight returns the weight of a base strategy under a regime.
func baseWeight(regime, strategy string) float64 {
	if weights, ok := regimeWeights[regime]; ok {
		if w, ok := weights[strategy]; ok {
			return w
		}
	}
	return 1.0
}

// ensemble combines the base strategies' votes, re-weighted by the current
// regime. Each base contributes its clamped per-side confidence times its
// regime weight; the stronger weighted side wins. An exact tie resolves
// toward the side holding the highest raw base confidence, and toward sell
// when even that is equal.
func ensemble(bases []Descriptor) Descriptor {
	var (
		columns []string
		warmup  int
		seen    = map[string]bool{}
	)
	for _, b := range bases {
		if b.WarmupBars > warmup {
			warmup = b.WarmupBars
		}
		for _, col := range b.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	vote := func(c VoteContext) Vote {
		var (
			buyScore, sellScore   float64
			buyRawMax, sellRawMax float64
			totalWeight           float64
			buyReasons            []string
			sellReasons           []string
		)

		for _, base := range bases {
			// Base strategies see their own defaults; the ensemble's
			// parameter surface stays the fixed weight table.
			bc := c
			bc.Params = base.Defaults()
			v := base.Vote(bc)

			w := baseWeight(c.Regime.Regime, base.Name)
			totalWeight += w

			if buy := clampConfidence(v.BuyPoints); buy > 0 {
				buyScore += w * buy
				if buy > buyRawMax {
					buyRawMax = buy
				}
				buyReasons = append(buyReasons, fmt.Sprintf("%s:%s", EnsembleName, base.Name))
			}
			if sell := clampConfidence(v.SellPoints); sell > 0 {
				sellScore += w * sell
				if sell > sellRawMax {
					sellRawMax = sell
				}
				sellReasons = append(sellReasons, fmt.Sprintf("%s:%s", EnsembleName, base.Name))
			}
		}

		if totalWeight == 0 || (buyScore == 0 && sellScore == 0) {
			return Vote{}
		}

		buyWins := buyScore > sellScore
		if buyScore == sellScore {
			buyWins = buyRawMax > sellRawMax
		}

		if buyWins {
			return Vote{BuyPoints: buyScore / totalWeight, BuyReasons: buyReasons}
		}
		return Vote{SellPoints: sellScore / totalWeight, SellReasons: sellReasons}
	}

	return Descriptor{
		Name:        EnsembleName,
		Description: "regime-weighted combination of the base strategies",
		Columns:     columns,
		WarmupBars:  warmup,
		Params:      nil,
		Vote:        vote,
	}
}
