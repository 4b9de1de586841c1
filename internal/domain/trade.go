package domain

import "github.com/shopspring/decimal"

// Trade represents one closed round trip with full execution details.
// Money fields use decimal arithmetic so ledger math stays exact.
// Corresponds to the trades table in ClickHouse. Immutable, append-only
// within a run.
type Trade struct {
	TradeID    string // deterministic hash, unique per run
	RunID      string // simulation run this trade belongs to
	Instrument string // instrument identifier
	StrategyID string // strategy that produced the signals

	// Entry
	EntryTimeMs   int64           // execution timestamp (ms)
	EntryPrice    decimal.Decimal // slippage-adjusted execution price
	Size          decimal.Decimal // position size in base units
	EntryNotional decimal.Decimal // size * entry price

	// Exit
	ExitTimeMs   int64           // execution timestamp (ms)
	ExitPrice    decimal.Decimal // slippage-adjusted execution price
	ExitNotional decimal.Decimal // size * exit price
	ExitReason   string          // reason code

	// Outcome
	Fees         decimal.Decimal // entry fee + exit fee
	PnL          decimal.Decimal // exit notional - entry notional - fees
	PnLPct       float64         // PnL relative to entry notional, percent
	OutcomeClass string          // "WIN" | "LOSS"

	// Context
	HoldDurationMs int64  // exit time - entry time
	Regime         string // regime active at entry, empty if unknown
}

// Exit reason codes.
const (
	ExitReasonSignal    = "SIGNAL_EXIT"
	ExitReasonEndOfData = "END_OF_DATA"
)

// Outcome class constants.
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)
