package domain

// RunStatus distinguishes a computed result from one that could not be
// computed for lack of usable input. Callers must branch on it instead of
// inspecting zero values.
type RunStatus string

// Run status constants.
const (
	RunOK               RunStatus = "ok"
	RunInsufficientData RunStatus = "insufficient_data"
)

// PerformanceMetrics summarizes one simulation run. Fully recomputed from
// the trade list and equity curve, never partially updated. Percentages
// are expressed as numbers (10.0 means +10%); drawdown is non-positive.
type PerformanceMetrics struct {
	TotalReturnPct      float64 // final equity vs initial capital
	AnnualizedReturnPct float64 // total return scaled to one year
	SharpeRatio         float64 // annualized mean/stddev of period returns
	SortinoRatio        float64 // annualized mean/downside-stddev of period returns

	MaxDrawdownPct        float64 // peak-to-trough equity decline, <= 0
	MaxDrawdownDurationMs int64   // longest underwater stretch in milliseconds
	MaxDrawdownBars       int     // same stretch measured in bars

	WinRate      float64 // winning trades / total trades, 0 when no trades
	ProfitFactor float64 // gross gains / gross losses; +Inf if no losses, 0 if no trades

	TotalTrades   int // closed trades in the run
	WinningTrades int // trades with positive PnL
	LosingTrades  int // trades with non-positive PnL

	InitialCapital float64 // starting equity
	FinalEquity    float64 // equity after the last bar
	TotalFeesPaid  float64 // sum of all fees charged

	StartTimeMs int64 // first bar timestamp, 0 when the run was empty
	EndTimeMs   int64 // last bar timestamp, 0 when the run was empty
}
