package signal

import (
	"math"

	"strategy-lab/internal/domain"
)

// VoteContext carries everything a vote function may read for one bar.
// The regime snapshot is the zero value when no regime series was supplied.
type VoteContext struct {
	Frame  *domain.IndicatorFrame
	Index  int
	Params Params
	Regime domain.RegimeSnapshot
}

// Bar returns the bar under decision.
func (c VoteContext) Bar() domain.PriceBar {
	return c.Frame.Bars[c.Index]
}

// Value returns the indicator value of the named column at the current bar.
// NaN when the column is absent.
func (c VoteContext) Value(column string) float64 {
	return c.ValueAt(column, c.Index)
}

// ValueAt returns the indicator value of the named column at index i.
// NaN when the column is absent or i is out of range.
func (c VoteContext) ValueAt(column string, i int) float64 {
	col, ok := c.Frame.Column(column)
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Vote is the raw outcome of one strategy's rules at one bar: accumulated
// confidence points per side with the reason tags that produced them.
// Exclusivity is resolved by the vectorizer, not here.
type Vote struct {
	BuyPoints   float64
	SellPoints  float64
	BuyReasons  []string
	SellReasons []string
}

// add accumulates points toward one side.
func (v *Vote) add(side string, points float64, reason string) {
	if points <= 0 {
		return
	}
	switch side {
	case domain.ActionBuy:
		v.BuyPoints += points
		v.BuyReasons = append(v.BuyReasons, reason)
	case domain.ActionSell:
		v.SellPoints += points
		v.SellReasons = append(v.SellReasons, reason)
	}
}

// VoteFunc produces the raw vote for one bar. Implementations must be pure
// functions of the context: same inputs, same vote.
type VoteFunc func(c VoteContext) Vote

// Rule is one row of a strategy rule table. Eval returns the confidence
// points the row contributes when its condition holds, 0 otherwise.
type Rule struct {
	Reason string // tag surfaced on the resulting signal
	Side   string // domain.ActionBuy or domain.ActionSell
	Eval   func(c VoteContext) float64
}

// TableVote builds a vote function from a rule table. Rows are evaluated
// in order; each contributes its points to its side.
func TableVote(rules []Rule) VoteFunc {
	return func(c VoteContext) Vote {
		var v Vote
		for _, rule := range rules {
			v.add(rule.Side, rule.Eval(c), rule.Reason)
		}
		return v
	}
}

// clampConfidence bounds raw points to the confidence range [0,100].
func clampConfidence(points float64) float64 {
	if points < 0 || math.IsNaN(points) {
		return 0
	}
	if points > 100 {
		return 100
	}
	return points
}

// validValue reports whether an indicator value is usable in a rule.
func validValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
