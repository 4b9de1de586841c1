package signal

import (
	"math"

	"strategy-lab/internal/domain"
)

// Indicator columns read by the moving-average trend strategy.
const (
	colSMAFast = "sma_fast"
	colSMASlow = "sma_slow"
)

// maTrend follows fast/slow moving-average crossovers. Crossovers earn 65
// points plus a bonus scaled by the relative spread; a sustained spread
// beyond min_spread adds a low-confidence continuation vote.
func maTrend() Descriptor {
	// Relative spread (fast - slow) / slow at index i, NaN when unusable.
	spread := func(c VoteContext, i int) float64 {
		fast, slow := c.ValueAt(colSMAFast, i), c.ValueAt(colSMASlow, i)
		if !validValue(fast) || !validValue(slow) || slow == 0 {
			return math.NaN()
		}
		return (fast - slow) / slow
	}

	crossPoints := func(cur float64) float64 {
		return 65 + 35*math.Min(1, math.Abs(cur)/0.02)
	}

	rules := []Rule{
		{
			Reason: "golden_cross",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				cur, prev := spread(c, c.Index), spread(c, c.Index-1)
				if !validValue(cur) || !validValue(prev) {
					return 0
				}
				if prev <= 0 && cur > 0 {
					return crossPoints(cur)
				}
				return 0
			},
		},
		{
			Reason: "death_cross",
			Side:   domain.ActionSell,
			Eval: func(c VoteContext) float64 {
				cur, prev := spread(c, c.Index), spread(c, c.Index-1)
				if !validValue(cur) || !validValue(prev) {
					return 0
				}
				if prev >= 0 && cur < 0 {
					return crossPoints(cur)
				}
				return 0
			},
		},
		{
			Reason: "trend_continuation",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				cur := spread(c, c.Index)
				minSpread := c.Params.Get("min_spread", 0.002)
				if !validValue(cur) || cur < minSpread {
					return 0
				}
				return 30
			},
		},
	}

	return Descriptor{
		Name:        "ma_trend",
		Description: "trend following on fast/slow moving-average crossovers",
		Columns:     []string{colSMAFast, colSMASlow},
		WarmupBars:  30,
		Params: []ParamSpec{
			{Name: "min_spread", Min: 0.001, Max: 0.01, Step: 0.001, Default: 0.002},
		},
		Vote: TableVote(rules),
	}
}
