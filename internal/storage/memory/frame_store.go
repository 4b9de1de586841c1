package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// FrameStore is an in-memory implementation of storage.FrameStore.
type FrameStore struct {
	mu   sync.RWMutex
	data map[string]*instrumentFrame // keyed by instrument
}

// instrumentFrame holds one instrument's accumulated bars and columns,
// kept sorted by timestamp.
type instrumentFrame struct {
	bars    []domain.PriceBar
	columns map[string][]float64
}

// NewFrameStore creates a new in-memory frame store.
func NewFrameStore() *FrameStore {
	return &FrameStore{
		data: make(map[string]*instrumentFrame),
	}
}

// InsertFrame adds all bars and indicator values of a validated frame.
// Returns ErrDuplicateKey if any (instrument, timestamp_ms) bar exists.
func (s *FrameStore) InsertFrame(_ context.Context, f *domain.IndicatorFrame) error {
	if f == nil || f.Instrument == "" {
		return storage.ErrInvalidInput
	}
	if err := f.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.data[f.Instrument]
	if cur != nil {
		// Later inserts must carry the same column set so rows stay aligned.
		if len(f.Columns) != len(cur.columns) {
			return storage.ErrInvalidInput
		}
		for name := range f.Columns {
			if _, ok := cur.columns[name]; !ok {
				return storage.ErrInvalidInput
			}
		}
		existing := make(map[int64]struct{}, len(cur.bars))
		for _, b := range cur.bars {
			existing[b.TimestampMs] = struct{}{}
		}
		for _, b := range f.Bars {
			if _, dup := existing[b.TimestampMs]; dup {
				return storage.ErrDuplicateKey
			}
		}
	} else {
		cur = &instrumentFrame{columns: make(map[string][]float64)}
		s.data[f.Instrument] = cur
	}

	// Merge and re-sort; incoming frames may backfill earlier ranges.
	cur.bars = append(cur.bars, f.Bars...)
	order := make([]int, len(cur.bars))
	for i := range order {
		order[i] = i
	}

	for name, col := range f.Columns {
		cur.columns[name] = append(cur.columns[name], col...)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return cur.bars[order[i]].TimestampMs < cur.bars[order[j]].TimestampMs
	})
	cur.bars = permuteBars(cur.bars, order)
	for name, col := range cur.columns {
		cur.columns[name] = permuteFloats(col, order)
	}

	return nil
}

// GetFrame retrieves the frame for an instrument within [start, end]
// (inclusive), bars ordered by timestamp ASC.
func (s *FrameStore) GetFrame(_ context.Context, instrument string, start, end int64) (*domain.IndicatorFrame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &domain.IndicatorFrame{
		Instrument: instrument,
		Columns:    make(map[string][]float64),
	}
	cur, exists := s.data[instrument]
	if !exists {
		return out, nil
	}

	lo := sort.Search(len(cur.bars), func(i int) bool { return cur.bars[i].TimestampMs >= start })
	hi := sort.Search(len(cur.bars), func(i int) bool { return cur.bars[i].TimestampMs > end })

	out.Bars = append([]domain.PriceBar(nil), cur.bars[lo:hi]...)
	for name, col := range cur.columns {
		if len(col) == len(cur.bars) {
			out.Columns[name] = append([]float64(nil), col[lo:hi]...)
		}
	}
	return out, nil
}

// Instruments lists all instruments with stored bars, sorted.
func (s *FrameStore) Instruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func permuteBars(bars []domain.PriceBar, order []int) []domain.PriceBar {
	out := make([]domain.PriceBar, len(bars))
	for i, idx := range order {
		out[i] = bars[idx]
	}
	return out
}

func permuteFloats(values []float64, order []int) []float64 {
	out := make([]float64, len(values))
	for i, idx := range order {
		out[i] = values[idx]
	}
	return out
}

var _ storage.FrameStore = (*FrameStore)(nil)
