package domain

import (
	"errors"
	"fmt"
)

// Frame validation errors.
var (
	ErrUnorderedTimestamps = errors.New("bar timestamps not strictly increasing")
	ErrDuplicateTimestamp  = errors.New("duplicate bar timestamp")
	ErrColumnLength        = errors.New("indicator column length differs from bar count")
)

// PriceBar represents one OHLCV sample for a fixed interval.
// Bars are immutable once loaded.
type PriceBar struct {
	TimestampMs int64   // Unix timestamp in milliseconds (bar open time)
	Open        float64 // open price
	High        float64 // high price
	Low         float64 // low price
	Close       float64 // close price
	Volume      float64 // traded volume in the interval
}

// IndicatorFrame pairs an ordered bar series with named indicator columns.
// Indicator values are computed upstream; every column must have exactly
// one value per bar. Produced once per run and treated as read-only.
type IndicatorFrame struct {
	Instrument string               // opaque instrument identifier
	Bars       []PriceBar           // time-ordered bars
	Columns    map[string][]float64 // indicator name -> per-bar values
}

// Len returns the number of bars in the frame.
func (f *IndicatorFrame) Len() int {
	return len(f.Bars)
}

// Column returns the named indicator column, or false if absent.
func (f *IndicatorFrame) Column(name string) ([]float64, bool) {
	col, ok := f.Columns[name]
	return col, ok
}

// Closes returns the close price of every bar in order.
func (f *IndicatorFrame) Closes() []float64 {
	closes := make([]float64, len(f.Bars))
	for i, b := range f.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Validate checks the frame invariants: strictly increasing unique bar
// timestamps and indicator columns aligned to the bar count. An empty
// frame is valid; consumers treat it as insufficient data.
func (f *IndicatorFrame) Validate() error {
	for i := 1; i < len(f.Bars); i++ {
		prev, cur := f.Bars[i-1].TimestampMs, f.Bars[i].TimestampMs
		if cur == prev {
			return fmt.Errorf("%w: %d at index %d", ErrDuplicateTimestamp, cur, i)
		}
		if cur < prev {
			return fmt.Errorf("%w: %d after %d at index %d", ErrUnorderedTimestamps, cur, prev, i)
		}
	}
	for name, col := range f.Columns {
		if len(col) != len(f.Bars) {
			return fmt.Errorf("%w: column %q has %d values for %d bars",
				ErrColumnLength, name, len(col), len(f.Bars))
		}
	}
	return nil
}
