package clickhouse

import (
	"context"
	"fmt"
	"sort"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// FrameStore implements storage.FrameStore using ClickHouse. Bars live in
// price_bars; indicator values live in indicator_values keyed by column
// name, so frames with different indicator sets share one schema.
type FrameStore struct {
	conn *Conn
}

// NewFrameStore creates a new FrameStore.
func NewFrameStore(conn *Conn) *FrameStore {
	return &FrameStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FrameStore = (*FrameStore)(nil)

// InsertFrame adds all bars and indicator values of a validated frame.
// Returns ErrDuplicateKey if any (instrument, timestamp_ms) bar exists.
func (s *FrameStore) InsertFrame(ctx context.Context, f *domain.IndicatorFrame) error {
	if f == nil || f.Instrument == "" {
		return storage.ErrInvalidInput
	}
	if err := f.Validate(); err != nil {
		return storage.ErrInvalidInput
	}
	if f.Len() == 0 {
		return nil
	}

	// MergeTree does not enforce uniqueness; check the range up front.
	first := f.Bars[0].TimestampMs
	last := f.Bars[f.Len()-1].TimestampMs
	exists, err := s.anyBarInRange(ctx, f.Instrument, first, last)
	if err != nil {
		return fmt.Errorf("check existing bars: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			instrument, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare bar batch: %w", err)
	}
	for _, b := range f.Bars {
		err = batch.Append(
			f.Instrument, uint64(b.TimestampMs),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append bar to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send bar batch: %w", err)
	}

	if len(f.Columns) == 0 {
		return nil
	}

	indBatch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO indicator_values (
			instrument, indicator, timestamp_ms, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare indicator batch: %w", err)
	}
	for name, col := range f.Columns {
		for i, v := range col {
			err = indBatch.Append(f.Instrument, name, uint64(f.Bars[i].TimestampMs), v)
			if err != nil {
				return fmt.Errorf("append indicator to batch: %w", err)
			}
		}
	}
	if err := indBatch.Send(); err != nil {
		return fmt.Errorf("send indicator batch: %w", err)
	}

	return nil
}

// GetFrame retrieves the frame for an instrument within [start, end]
// (inclusive), bars ordered by timestamp ASC.
func (s *FrameStore) GetFrame(ctx context.Context, instrument string, start, end int64) (*domain.IndicatorFrame, error) {
	out := &domain.IndicatorFrame{
		Instrument: instrument,
		Columns:    make(map[string][]float64),
	}

	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM price_bars
		WHERE instrument = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`, instrument, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]int)
	for rows.Next() {
		var b domain.PriceBar
		var ts uint64
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.TimestampMs = int64(ts)
		index[b.TimestampMs] = len(out.Bars)
		out.Bars = append(out.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	if len(out.Bars) == 0 {
		return out, nil
	}

	indRows, err := s.conn.Query(ctx, `
		SELECT indicator, timestamp_ms, value
		FROM indicator_values
		WHERE instrument = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY indicator, timestamp_ms ASC
	`, instrument, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	defer indRows.Close()

	for indRows.Next() {
		var name string
		var ts uint64
		var value float64
		if err := indRows.Scan(&name, &ts, &value); err != nil {
			return nil, fmt.Errorf("scan indicator row: %w", err)
		}
		col, ok := out.Columns[name]
		if !ok {
			col = make([]float64, len(out.Bars))
			out.Columns[name] = col
		}
		if i, ok := index[int64(ts)]; ok {
			col[i] = value
		}
	}
	if err := indRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicator rows: %w", err)
	}

	return out, nil
}

// Instruments lists all instruments with stored bars, sorted.
func (s *FrameStore) Instruments(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT instrument FROM price_bars`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan instrument row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument rows: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// anyBarInRange reports whether the instrument already has a bar inside
// [start, end].
func (s *FrameStore) anyBarInRange(ctx context.Context, instrument string, start, end int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM price_bars
		WHERE instrument = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`, instrument, uint64(start), uint64(end)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
