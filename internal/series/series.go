// Package series provides index math over time-ordered bar and snapshot
// slices: binary-search bounds, half-open frame slicing, and at-or-before
// lookups. All functions assume the input is already validated as strictly
// increasing by timestamp.
package series

import (
	"sort"

	"strategy-lab/internal/domain"
)

// LowerBound returns the index of the first bar with a timestamp >= targetMs,
// or len(bars) if no such bar exists.
func LowerBound(bars []domain.PriceBar, targetMs int64) int {
	return sort.Search(len(bars), func(i int) bool {
		return bars[i].TimestampMs >= targetMs
	})
}

// UpperBound returns the index of the first bar with a timestamp > targetMs,
// or len(bars) if no such bar exists.
func UpperBound(bars []domain.PriceBar, targetMs int64) int {
	return sort.Search(len(bars), func(i int) bool {
		return bars[i].TimestampMs > targetMs
	})
}

// Slice returns the sub-frame whose bar timestamps fall in [fromMs, toMs).
// The sub-frame shares backing arrays with the input; callers must treat
// both as read-only.
func Slice(f *domain.IndicatorFrame, fromMs, toMs int64) *domain.IndicatorFrame {
	lo := LowerBound(f.Bars, fromMs)
	hi := LowerBound(f.Bars, toMs)
	if lo > hi {
		lo = hi
	}

	sub := &domain.IndicatorFrame{
		Instrument: f.Instrument,
		Bars:       f.Bars[lo:hi],
	}
	if len(f.Columns) > 0 {
		sub.Columns = make(map[string][]float64, len(f.Columns))
		for name, col := range f.Columns {
			sub.Columns[name] = col[lo:hi]
		}
	}
	return sub
}

// RegimeAt returns the snapshot at or before targetMs. The boolean is false
// when every snapshot is newer than the target or the slice is empty.
func RegimeAt(targetMs int64, snaps []domain.RegimeSnapshot) (domain.RegimeSnapshot, bool) {
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].TimestampMs <= targetMs {
			return snaps[i], true
		}
	}
	return domain.RegimeSnapshot{}, false
}
