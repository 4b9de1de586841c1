package signal

import "strategy-lab/internal/domain"

// Indicator column read by the RSI strategy.
const colRSI = "rsi"

// rsiReversion buys oversold and sells overbought RSI readings. Points
// start at 50 when a threshold is crossed and grow with the depth of the
// excursion.
func rsiReversion() Descriptor {
	rules := []Rule{
		{
			Reason: "rsi_oversold",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				rsi := c.Value(colRSI)
				buyBelow := c.Params.Get("buy_below", 30)
				if !validValue(rsi) || rsi >= buyBelow || buyBelow <= 0 {
					return 0
				}
				return 50 + 50*(buyBelow-rsi)/buyBelow
			},
		},
		{
			Reason: "rsi_overbought",
			Side:   domain.ActionSell,
			Eval: func(c VoteContext) float64 {
				rsi := c.Value(colRSI)
				sellAbove := c.Params.Get("sell_above", 70)
				if !validValue(rsi) || rsi <= sellAbove || sellAbove >= 100 {
					return 0
				}
				return 50 + 50*(rsi-sellAbove)/(100-sellAbove)
			},
		},
	}

	return Descriptor{
		Name:        "rsi_reversion",
		Description: "mean reversion on RSI oversold/overbought thresholds",
		Columns:     []string{colRSI},
		WarmupBars:  15,
		Params: []ParamSpec{
			{Name: "buy_below", Min: 15, Max: 40, Step: 5, Default: 30},
			{Name: "sell_above", Min: 60, Max: 85, Step: 5, Default: 70},
		},
		Vote: TableVote(rules),
	}
}
