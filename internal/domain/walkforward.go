package domain

// WalkForwardWindow records one train/test step of a walk-forward sweep.
// The test span strictly follows the train span; spans never overlap.
// Corresponds to the walkforward_windows table in ClickHouse.
type WalkForwardWindow struct {
	RunID      string // sweep run identifier
	Index      int    // 0-based window position within the sweep
	Instrument string // instrument under evaluation
	StrategyID string // strategy under evaluation

	TrainStartMs int64 // inclusive
	TrainEndMs   int64 // exclusive; equals TestStartMs
	TestStartMs  int64 // inclusive
	TestEndMs    int64 // exclusive

	Params     map[string]float64 // parameter combination chosen on train
	TrainScore float64            // objective value of Params on the train slice

	TestStatus  RunStatus          // ok or insufficient_data
	TestMetrics PerformanceMetrics // metrics of Params on the test slice
}
