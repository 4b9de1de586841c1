package domain

// Signal action labels.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Signal represents one strategy's decision at one timestamp.
// Buy and sell are mutually exclusive; a signal with neither set is a hold.
// Confidence is clamped to [0,100]. Signals are pure functions of the
// indicator frame and are never mutated after creation.
type Signal struct {
	TimestampMs int64    // bar timestamp the decision applies to
	Buy         bool     // enter or add exposure
	Sell        bool     // exit exposure
	Confidence  float64  // decision confidence, 0..100
	Reasons     []string // rule tags that contributed to the decision
}

// Action returns the signal's action label.
func (s Signal) Action() string {
	switch {
	case s.Buy:
		return ActionBuy
	case s.Sell:
		return ActionSell
	default:
		return ActionHold
	}
}
