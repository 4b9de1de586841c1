package signal

import (
	"math"

	"strategy-lab/internal/domain"
)

// Indicator columns read by the MACD strategy.
const (
	colMACD       = "macd"
	colMACDSignal = "macd_signal"
	colMACDHist   = "macd_hist"
)

// macdCross signals on MACD line / signal line crossovers. The crossover
// row contributes 60 points plus a bonus scaled by the histogram magnitude
// relative to the MACD line; a momentum row adds a small continuation vote.
// Crossovers with a histogram ratio below min_hist_ratio are filtered out.
func macdCross() Descriptor {
	histRatio := func(c VoteContext) float64 {
		hist := c.Value(colMACDHist)
		macd := c.Value(colMACD)
		if !validValue(hist) || !validValue(macd) || macd == 0 {
			return 0
		}
		return math.Abs(hist) / math.Abs(macd)
	}

	crossPoints := func(c VoteContext) float64 {
		ratio := histRatio(c)
		if ratio < c.Params.Get("min_hist_ratio", 0) {
			return 0
		}
		return 60 + 40*math.Min(1, ratio)
	}

	rules := []Rule{
		{
			Reason: "macd_cross_up",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				macd, sig := c.Value(colMACD), c.Value(colMACDSignal)
				prevMACD, prevSig := c.ValueAt(colMACD, c.Index-1), c.ValueAt(colMACDSignal, c.Index-1)
				if !validValue(macd) || !validValue(sig) || !validValue(prevMACD) || !validValue(prevSig) {
					return 0
				}
				if prevMACD <= prevSig && macd > sig {
					return crossPoints(c)
				}
				return 0
			},
		},
		{
			Reason: "macd_cross_down",
			Side:   domain.ActionSell,
			Eval: func(c VoteContext) float64 {
				macd, sig := c.Value(colMACD), c.Value(colMACDSignal)
				prevMACD, prevSig := c.ValueAt(colMACD, c.Index-1), c.ValueAt(colMACDSignal, c.Index-1)
				if !validValue(macd) || !validValue(sig) || !validValue(prevMACD) || !validValue(prevSig) {
					return 0
				}
				if prevMACD >= prevSig && macd < sig {
					return crossPoints(c)
				}
				return 0
			},
		},
		{
			Reason: "macd_momentum",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				// Histogram expanding above zero for three bars.
				h0 := c.Value(colMACDHist)
				h1 := c.ValueAt(colMACDHist, c.Index-1)
				h2 := c.ValueAt(colMACDHist, c.Index-2)
				if !validValue(h0) || !validValue(h1) || !validValue(h2) {
					return 0
				}
				if h2 > 0 && h1 > h2 && h0 > h1 {
					return 25
				}
				return 0
			},
		},
	}

	return Descriptor{
		Name:        "macd_cross",
		Description: "trend entries on MACD/signal line crossovers",
		Columns:     []string{colMACD, colMACDSignal, colMACDHist},
		WarmupBars:  35,
		Params: []ParamSpec{
			{Name: "min_hist_ratio", Min: 0, Max: 0.5, Step: 0.1, Default: 0},
		},
		Vote: TableVote(rules),
	}
}
