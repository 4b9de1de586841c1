package domain

// HealthStatus is the persisted verdict for one monitored pair after a
// monitoring cycle. Corresponds to the monitor_status table in Postgres.
type HealthStatus struct {
	StrategyID   string   // monitored strategy
	Instrument   string   // monitored instrument
	Status       string   // HEALTHY, WARNING or CRITICAL
	UpdatedMs    int64    // timestamp of the cycle that produced this row
	Paused       bool     // true when a pause recommendation is active
	PauseReasons []string // all matched pause conditions, empty when not paused
}
