package reporting

import (
	"time"

	"strategy-lab/internal/walkforward"
)

// ComparisonReport is the renderable view of one strategy comparison.
type ComparisonReport struct {
	// Metadata
	GeneratedAt time.Time
	Instrument  string

	StrategyCount int // strategies evaluated
	RankedCount   int // strategies that produced a rankable run
	Best          string

	// Rows in composite-ranking order, unranked outcomes last.
	Rows []ComparisonRow

	// Ranking tables, best first.
	ByReturn   []RankingRow
	BySharpe   []RankingRow
	ByDrawdown []RankingRow
	Composite  []RankingRow

	// Strategies whose run failed outright.
	Failures []FailureRow
}

// ComparisonRow is one strategy's metrics within a comparison.
type ComparisonRow struct {
	Strategy string
	RunID    string
	Status   string

	TotalReturnPct      float64
	AnnualizedReturnPct float64
	SharpeRatio         float64
	SortinoRatio        float64
	MaxDrawdownPct      float64
	WinRate             float64
	ProfitFactor        float64
	TotalTrades         int
	FinalEquity         float64
	TotalFeesPaid       float64
}

// RankingRow is one entry of a ranking table.
type RankingRow struct {
	Rank     int
	Strategy string
	Value    float64
}

// FailureRow records a strategy excluded from ranking by an error.
type FailureRow struct {
	Strategy string
	Err      string
}

// StabilityReport is the renderable view of one walk-forward sweep.
type StabilityReport struct {
	GeneratedAt time.Time

	RunID      string
	Instrument string
	StrategyID string
	Objective  string
	Status     string

	TotalWindows    int // windows the sweep produced
	ComputedWindows int // windows whose test run computed

	Stability walkforward.Stability

	Windows []WindowRow
}

// WindowRow is one walk-forward window in sweep order.
type WindowRow struct {
	Index        int
	TrainStartMs int64
	TrainEndMs   int64
	TestStartMs  int64
	TestEndMs    int64

	Params     string // sorted "name=value" pairs
	TrainScore float64

	TestStatus      string
	TestReturnPct   float64
	TestSharpe      float64
	TestDrawdownPct float64
	TestWinRate     float64
	TestTrades      int
}
