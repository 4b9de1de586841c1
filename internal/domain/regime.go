package domain

// Market regime categories.
const (
	RegimeTrendingUp       = "trending_up"
	RegimeTrendingDown     = "trending_down"
	RegimeRanging          = "ranging"
	RegimeHighVolatility   = "high_volatility"
	RegimeLowVolatility    = "low_volatility"
	RegimeInsufficientData = "insufficient_data"
)

// RegimeSnapshot classifies the market state over one rolling window.
// Snapshots are appended to a bounded history; the oldest are evicted
// past a time cap. Callers must not act on an insufficient-data snapshot.
type RegimeSnapshot struct {
	TimestampMs int64   // timestamp of the newest bar in the window
	Instrument  string  // instrument the window belongs to
	Regime      string  // winning regime category
	Confidence  float64 // winning score / max possible score, 0..1

	// Characteristic metrics behind the classification.
	AnnualizedVolatility float64 // stddev of period returns, annualized, percent
	TrendSlope           float64 // normalized regression slope of recent closes
	VolumeRatio          float64 // recent mean volume / window mean volume
	ShortHorizonReturn   float64 // return over the last few bars, percent
}

// RegimeChange records a dominant-regime transition between two adjacent
// observation windows. Fired only when the newer window agrees internally
// above the configured threshold.
type RegimeChange struct {
	TimestampMs int64   // timestamp of the snapshot that completed the change
	Instrument  string  // instrument the change belongs to
	From        string  // dominant regime of the prior window
	To          string  // dominant regime of the latest window
	Agreement   float64 // fraction of the latest window agreeing on To, 0..1
}
