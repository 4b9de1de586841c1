package clickhouse

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// WindowStore implements storage.WindowStore using ClickHouse. The chosen
// parameter combination is stored as a Map(String, Float64) column; test
// metrics are flattened into the columns the stability report reads.
type WindowStore struct {
	conn *Conn
}

// NewWindowStore creates a new WindowStore.
func NewWindowStore(conn *Conn) *WindowStore {
	return &WindowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.WindowStore = (*WindowStore)(nil)

const windowColumns = `
	run_id, index, instrument, strategy_id,
	train_start_ms, train_end_ms, test_start_ms, test_end_ms,
	params, train_score, test_status,
	test_return_pct, test_sharpe, test_sortino,
	test_max_drawdown_pct, test_win_rate, test_total_trades
`

// Insert adds one completed window. Returns ErrDuplicateKey if
// (run_id, index) exists.
func (s *WindowStore) Insert(ctx context.Context, w *domain.WalkForwardWindow) error {
	if w == nil || w.RunID == "" || w.Index < 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, w.RunID, w.Index)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO walkforward_windows (`+windowColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	params := w.Params
	if params == nil {
		params = map[string]float64{}
	}
	err = batch.Append(
		w.RunID, uint32(w.Index), w.Instrument, w.StrategyID,
		uint64(w.TrainStartMs), uint64(w.TrainEndMs), uint64(w.TestStartMs), uint64(w.TestEndMs),
		params, w.TrainScore, string(w.TestStatus),
		w.TestMetrics.TotalReturnPct, w.TestMetrics.SharpeRatio, w.TestMetrics.SortinoRatio,
		w.TestMetrics.MaxDrawdownPct, w.TestMetrics.WinRate, uint32(w.TestMetrics.TotalTrades),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all windows of a sweep, ordered by index ASC.
func (s *WindowStore) GetByRunID(ctx context.Context, runID string) ([]*domain.WalkForwardWindow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+windowColumns+`
		FROM walkforward_windows
		WHERE run_id = ?
		ORDER BY index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var windows []*domain.WalkForwardWindow
	for rows.Next() {
		var w domain.WalkForwardWindow
		var index, totalTrades uint32
		var trainStart, trainEnd, testStart, testEnd uint64
		var status string
		params := map[string]float64{}

		err := rows.Scan(
			&w.RunID, &index, &w.Instrument, &w.StrategyID,
			&trainStart, &trainEnd, &testStart, &testEnd,
			&params, &w.TrainScore, &status,
			&w.TestMetrics.TotalReturnPct, &w.TestMetrics.SharpeRatio, &w.TestMetrics.SortinoRatio,
			&w.TestMetrics.MaxDrawdownPct, &w.TestMetrics.WinRate, &totalTrades,
		)
		if err != nil {
			return nil, fmt.Errorf("scan window row: %w", err)
		}

		w.Index = int(index)
		w.TrainStartMs = int64(trainStart)
		w.TrainEndMs = int64(trainEnd)
		w.TestStartMs = int64(testStart)
		w.TestEndMs = int64(testEnd)
		w.Params = params
		w.TestStatus = domain.RunStatus(status)
		w.TestMetrics.TotalTrades = int(totalTrades)
		windows = append(windows, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window rows: %w", err)
	}

	return windows, nil
}

// exists checks if a window with the given key exists.
func (s *WindowStore) exists(ctx context.Context, runID string, index int) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM walkforward_windows
		WHERE run_id = ? AND index = ?
	`, runID, uint32(index)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
