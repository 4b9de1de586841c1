package signal

import (
	"math"

	"strategy-lab/internal/domain"
)

// Indicator columns read by the Bollinger strategy.
const (
	colBBUpper  = "bb_upper"
	colBBMiddle = "bb_middle"
	colBBLower  = "bb_lower"
)

// bollingerReversion fades band excursions: buy below the lower band, sell
// above the upper band, plus a small vote when price re-enters the bands
// from below. band_margin widens the trigger distance beyond the bands as
// a fraction of band width.
func bollingerReversion() Descriptor {
	// Excursion depth relative to band width, 0 when inside the bands.
	depth := func(c VoteContext, above bool) float64 {
		upper, lower := c.Value(colBBUpper), c.Value(colBBLower)
		close := c.Bar().Close
		if !validValue(upper) || !validValue(lower) || upper <= lower {
			return math.NaN()
		}
		width := upper - lower
		margin := c.Params.Get("band_margin", 0) * width
		if above {
			return (close - upper - margin) / width
		}
		return (lower - margin - close) / width
	}

	rules := []Rule{
		{
			Reason: "below_lower_band",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				d := depth(c, false)
				if !validValue(d) || d <= 0 {
					return 0
				}
				return 55 + 45*math.Min(1, d)
			},
		},
		{
			Reason: "above_upper_band",
			Side:   domain.ActionSell,
			Eval: func(c VoteContext) float64 {
				d := depth(c, true)
				if !validValue(d) || d <= 0 {
					return 0
				}
				return 55 + 45*math.Min(1, d)
			},
		},
		{
			Reason: "band_reentry",
			Side:   domain.ActionBuy,
			Eval: func(c VoteContext) float64 {
				// Close crossed back above the lower band after an excursion.
				if c.Index < 1 {
					return 0
				}
				lower := c.Value(colBBLower)
				prevLower := c.ValueAt(colBBLower, c.Index-1)
				if !validValue(lower) || !validValue(prevLower) {
					return 0
				}
				prevClose := c.Frame.Bars[c.Index-1].Close
				if prevClose < prevLower && c.Bar().Close >= lower {
					return 30
				}
				return 0
			},
		},
	}

	return Descriptor{
		Name:        "bollinger_reversion",
		Description: "mean reversion on Bollinger band excursions",
		Columns:     []string{colBBUpper, colBBMiddle, colBBLower},
		WarmupBars:  21,
		Params: []ParamSpec{
			{Name: "band_margin", Min: 0, Max: 0.3, Step: 0.05, Default: 0},
		},
		Vote: TableVote(rules),
	}
}
