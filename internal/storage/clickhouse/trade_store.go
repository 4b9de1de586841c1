package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using ClickHouse. Money fields
// are stored as Float64; the decimal ledger precision matters during the
// run, the analytical history tolerates float rounding.
type TradeStore struct {
	conn *Conn
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn) *TradeStore {
	return &TradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, run_id, instrument, strategy_id,
	entry_time_ms, entry_price, size, entry_notional,
	exit_time_ms, exit_price, exit_notional, exit_reason,
	fees, pnl, pnl_pct, outcome_class,
	hold_duration_ms, regime
`

// InsertBulk adds multiple trades atomically. Fails entire batch on any
// duplicate trade_id.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, t := range trades {
		exists, err := s.exists(ctx, t.TradeID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO trades (`+tradeColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.TradeID, t.RunID, t.Instrument, t.StrategyID,
			uint64(t.EntryTimeMs), t.EntryPrice.InexactFloat64(), t.Size.InexactFloat64(), t.EntryNotional.InexactFloat64(),
			uint64(t.ExitTimeMs), t.ExitPrice.InexactFloat64(), t.ExitNotional.InexactFloat64(), t.ExitReason,
			t.Fees.InexactFloat64(), t.PnL.InexactFloat64(), t.PnLPct, t.OutcomeClass,
			uint64(t.HoldDurationMs), t.Regime,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all trades of a run, ordered by entry time ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ?
		ORDER BY entry_time_ms ASC, trade_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByKeySince retrieves trades for a (strategy, instrument) pair whose
// exit time is >= since, ordered by exit time ASC.
func (s *TradeStore) GetByKeySince(ctx context.Context, strategyID, instrument string, since int64) ([]*domain.Trade, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE strategy_id = ? AND instrument = ? AND exit_time_ms >= ?
		ORDER BY exit_time_ms ASC, trade_id ASC
	`, strategyID, instrument, uint64(since))
	if err != nil {
		return nil, fmt.Errorf("query by key since: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// exists checks if a trade with the given id exists.
func (s *TradeStore) exists(ctx context.Context, tradeID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM trades WHERE trade_id = ?
	`, tradeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTrades scans multiple rows.
func scanTrades(rows chRows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var entryMs, exitMs, holdMs uint64
		var entryPrice, size, entryNotional, exitPrice, exitNotional, fees, pnl float64

		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Instrument, &t.StrategyID,
			&entryMs, &entryPrice, &size, &entryNotional,
			&exitMs, &exitPrice, &exitNotional, &t.ExitReason,
			&fees, &pnl, &t.PnLPct, &t.OutcomeClass,
			&holdMs, &t.Regime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		t.EntryTimeMs = int64(entryMs)
		t.ExitTimeMs = int64(exitMs)
		t.HoldDurationMs = int64(holdMs)
		t.EntryPrice = decimal.NewFromFloat(entryPrice)
		t.Size = decimal.NewFromFloat(size)
		t.EntryNotional = decimal.NewFromFloat(entryNotional)
		t.ExitPrice = decimal.NewFromFloat(exitPrice)
		t.ExitNotional = decimal.NewFromFloat(exitNotional)
		t.Fees = decimal.NewFromFloat(fees)
		t.PnL = decimal.NewFromFloat(pnl)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
