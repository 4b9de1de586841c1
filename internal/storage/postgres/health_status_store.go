package postgres

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// HealthStatusStore implements storage.HealthStatusStore using PostgreSQL.
type HealthStatusStore struct {
	pool *Pool
}

// NewHealthStatusStore creates a new HealthStatusStore.
func NewHealthStatusStore(pool *Pool) *HealthStatusStore {
	return &HealthStatusStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HealthStatusStore = (*HealthStatusStore)(nil)

// Upsert inserts or replaces the verdict for a (strategy, instrument) pair.
func (s *HealthStatusStore) Upsert(ctx context.Context, st *domain.HealthStatus) error {
	if st == nil || st.StrategyID == "" || st.Instrument == "" {
		return storage.ErrInvalidInput
	}

	reasons := st.PauseReasons
	if reasons == nil {
		reasons = []string{}
	}

	query := `
		INSERT INTO monitor_status (
			strategy_id, instrument, status, updated_ms, paused, pause_reasons
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (strategy_id, instrument) DO UPDATE SET
			status = EXCLUDED.status,
			updated_ms = EXCLUDED.updated_ms,
			paused = EXCLUDED.paused,
			pause_reasons = EXCLUDED.pause_reasons
	`

	_, err := s.pool.Exec(ctx, query,
		st.StrategyID, st.Instrument, st.Status, st.UpdatedMs, st.Paused, reasons,
	)
	if err != nil {
		return fmt.Errorf("upsert monitor status: %w", err)
	}
	return nil
}

// GetByKey retrieves the verdict for a pair. Returns ErrNotFound if the
// pair has never been observed.
func (s *HealthStatusStore) GetByKey(ctx context.Context, strategyID, instrument string) (*domain.HealthStatus, error) {
	query := `
		SELECT strategy_id, instrument, status, updated_ms, paused, pause_reasons
		FROM monitor_status
		WHERE strategy_id = $1 AND instrument = $2
	`

	var st domain.HealthStatus
	err := s.pool.QueryRow(ctx, query, strategyID, instrument).Scan(
		&st.StrategyID, &st.Instrument, &st.Status, &st.UpdatedMs, &st.Paused, &st.PauseReasons,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get monitor status: %w", err)
	}
	return &st, nil
}

// GetAll retrieves every pair's verdict, ordered by strategy then instrument.
func (s *HealthStatusStore) GetAll(ctx context.Context) ([]*domain.HealthStatus, error) {
	query := `
		SELECT strategy_id, instrument, status, updated_ms, paused, pause_reasons
		FROM monitor_status
		ORDER BY strategy_id ASC, instrument ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query monitor statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*domain.HealthStatus
	for rows.Next() {
		var st domain.HealthStatus
		err := rows.Scan(
			&st.StrategyID, &st.Instrument, &st.Status, &st.UpdatedMs, &st.Paused, &st.PauseReasons,
		)
		if err != nil {
			return nil, fmt.Errorf("scan monitor status row: %w", err)
		}
		statuses = append(statuses, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitor status rows: %w", err)
	}

	return statuses, nil
}
