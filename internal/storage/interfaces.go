package storage

import (
	"context"

	"strategy-lab/internal/domain"
)

// FrameStore provides access to bar and indicator storage. A frame is the
// unit of ingestion: an ordered bar series plus aligned indicator columns
// for one instrument.
type FrameStore interface {
	// InsertFrame adds all bars and indicator values of a validated frame.
	// Returns ErrDuplicateKey if any (instrument, timestamp_ms) bar exists.
	InsertFrame(ctx context.Context, f *domain.IndicatorFrame) error

	// GetFrame retrieves the frame for an instrument within [start, end]
	// (inclusive), bars ordered by timestamp ASC. A range with no bars
	// yields an empty frame, not an error.
	GetFrame(ctx context.Context, instrument string, start, end int64) (*domain.IndicatorFrame, error)

	// Instruments lists all instruments with stored bars, sorted.
	Instruments(ctx context.Context) ([]string, error)
}

// TradeStore provides access to simulated trade storage.
type TradeStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on any
	// duplicate trade_id.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByRunID retrieves all trades of a run, ordered by entry time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error)

	// GetByKeySince retrieves trades for a (strategy, instrument) pair whose
	// exit time is >= since, ordered by exit time ASC.
	GetByKeySince(ctx context.Context, strategyID, instrument string, since int64) ([]*domain.Trade, error)
}

// WindowStore provides access to walk-forward window storage.
type WindowStore interface {
	// Insert adds one completed window. Returns ErrDuplicateKey if
	// (run_id, index) exists.
	Insert(ctx context.Context, w *domain.WalkForwardWindow) error

	// GetByRunID retrieves all windows of a sweep, ordered by index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.WalkForwardWindow, error)
}

// AlertStore provides access to the append-only alert stream.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.Alert) error

	// GetSince retrieves all alerts with timestamp >= since, ordered by
	// timestamp ASC.
	GetSince(ctx context.Context, since int64) ([]*domain.Alert, error)

	// GetByKeySince retrieves alerts for a (strategy, instrument) pair with
	// timestamp >= since, ordered by timestamp ASC.
	GetByKeySince(ctx context.Context, strategyID, instrument string, since int64) ([]*domain.Alert, error)
}

// HealthStatusStore provides access to per-pair monitor verdicts. Unlike
// the other stores this one is not append-only: each cycle overwrites the
// pair's current verdict.
type HealthStatusStore interface {
	// Upsert inserts or replaces the verdict for a (strategy, instrument) pair.
	Upsert(ctx context.Context, s *domain.HealthStatus) error

	// GetByKey retrieves the verdict for a pair. Returns ErrNotFound if the
	// pair has never been observed.
	GetByKey(ctx context.Context, strategyID, instrument string) (*domain.HealthStatus, error)

	// GetAll retrieves every pair's verdict, ordered by strategy then
	// instrument.
	GetAll(ctx context.Context) ([]*domain.HealthStatus, error)
}
