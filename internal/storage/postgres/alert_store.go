package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL. The metrics
// map is stored as jsonb, recommendations as a text array.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("marshal alert metrics: %w", err)
	}
	recommendations := a.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}

	query := `
		INSERT INTO alerts (
			id, timestamp_ms, strategy_id, instrument,
			type, severity, message, metrics, recommendations
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.TimestampMs, a.StrategyID, a.Instrument,
		a.Type, a.Severity, a.Message, metrics, recommendations,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetSince retrieves all alerts with timestamp >= since, ordered by
// timestamp ASC.
func (s *AlertStore) GetSince(ctx context.Context, since int64) ([]*domain.Alert, error) {
	query := `
		SELECT id, timestamp_ms, strategy_id, instrument,
		       type, severity, message, metrics, recommendations
		FROM alerts
		WHERE timestamp_ms >= $1
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query alerts since: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetByKeySince retrieves alerts for a (strategy, instrument) pair with
// timestamp >= since, ordered by timestamp ASC.
func (s *AlertStore) GetByKeySince(ctx context.Context, strategyID, instrument string, since int64) ([]*domain.Alert, error) {
	query := `
		SELECT id, timestamp_ms, strategy_id, instrument,
		       type, severity, message, metrics, recommendations
		FROM alerts
		WHERE strategy_id = $1 AND instrument = $2 AND timestamp_ms >= $3
		ORDER BY timestamp_ms ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID, instrument, since)
	if err != nil {
		return nil, fmt.Errorf("query alerts by key: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// pgRows is the subset of pgx.Rows the scanner needs.
type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanAlerts scans multiple rows.
func scanAlerts(rows pgRows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	for rows.Next() {
		var a domain.Alert
		var metrics []byte

		err := rows.Scan(
			&a.ID, &a.TimestampMs, &a.StrategyID, &a.Instrument,
			&a.Type, &a.Severity, &a.Message, &metrics, &a.Recommendations,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		if len(metrics) > 0 {
			if err := json.Unmarshal(metrics, &a.Metrics); err != nil {
				return nil, fmt.Errorf("unmarshal alert metrics: %w", err)
			}
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
