package domain

// Alert severity levels, ordered from least to most severe.
const (
	SeverityInfo      = "info"
	SeverityWarning   = "warning"
	SeverityCritical  = "critical"
	SeverityEmergency = "emergency"
)

// Alert type codes.
const (
	AlertPerformanceDegradation = "performance_degradation"
	AlertSharpeDegradation      = "sharpe_degradation"
	AlertDrawdownIncrease       = "drawdown_increase"
	AlertRegimeChange           = "regime_change"
)

// Health status of a monitored (strategy, instrument) pair.
const (
	HealthHealthy  = "HEALTHY"
	HealthWarning  = "WARNING"
	HealthCritical = "CRITICAL"
)

// Alert represents one monitoring event. Alerts are append-only and
// retained for a rolling lookback window. Corresponds to the alerts
// table in Postgres.
type Alert struct {
	ID          string  // unique event id
	TimestampMs int64   // when the rule fired
	StrategyID  string  // affected strategy, empty for global events
	Instrument  string  // affected instrument, empty for global events
	Type        string  // alert type code
	Severity    string  // severity level
	Message     string  // human-readable description

	Metrics         map[string]float64 // measurements behind the alert
	Recommendations []string           // suggested operator actions
}

// SeverityRank orders severities for comparisons; unknown severities rank
// below info.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	case SeverityEmergency:
		return 4
	default:
		return 0
	}
}

// PauseRecommendation tells the capital-allocation collaborator to stop
// routing capital to a strategy. Every matched reason is retained.
type PauseRecommendation struct {
	TimestampMs int64    // when the recommendation was produced
	StrategyID  string   // strategy to pause
	Instrument  string   // instrument scope
	Reasons     []string // all matching pause conditions
}
