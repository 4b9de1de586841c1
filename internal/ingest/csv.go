// Package ingest loads bar data with precomputed indicator columns from
// CSV files and persists it as frames. It is the only write path into the
// frame store; everything downstream treats frames as read-only.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"strategy-lab/internal/domain"
)

// CSV parse errors.
var (
	ErrEmptyFile       = errors.New("csv has no header row")
	ErrMissingColumn   = errors.New("csv missing required column")
	ErrDuplicateColumn = errors.New("csv header names a column twice")
	ErrBadValue        = errors.New("csv value is not numeric")
)

// requiredColumns are the bar fields every file must carry, in any order.
// Every remaining header column is treated as an indicator column.
var requiredColumns = []string{"timestamp_ms", "open", "high", "low", "close", "volume"}

// ReadFrame parses one instrument's CSV into a validated frame.
//
// The header row names the columns; timestamp_ms, open, high, low, close
// and volume are required, any other column becomes an indicator column
// under its header name. Rows must already be in ascending timestamp
// order; the frame's own validation rejects disorder and duplicates.
func ReadFrame(r io.Reader, instrument string) (*domain.IndicatorFrame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	layout, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	frame := &domain.IndicatorFrame{
		Instrument: instrument,
		Columns:    make(map[string][]float64, len(layout.indicators)),
	}
	for name := range layout.indicators {
		frame.Columns[name] = nil
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		bar, err := layout.parseBar(record, line)
		if err != nil {
			return nil, err
		}
		frame.Bars = append(frame.Bars, bar)

		for name, idx := range layout.indicators {
			v, err := parseFloat(record[idx], name, line)
			if err != nil {
				return nil, err
			}
			frame.Columns[name] = append(frame.Columns[name], v)
		}
	}

	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// headerLayout maps column names to their positions in each record.
type headerLayout struct {
	bars       map[string]int // required column -> index
	indicators map[string]int // indicator column -> index
}

func parseHeader(header []string) (*headerLayout, error) {
	layout := &headerLayout{
		bars:       make(map[string]int, len(requiredColumns)),
		indicators: make(map[string]int),
	}
	required := make(map[string]struct{}, len(requiredColumns))
	for _, name := range requiredColumns {
		required[name] = struct{}{}
	}

	for i, raw := range header {
		name := raw
		if _, ok := required[name]; ok {
			if _, dup := layout.bars[name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
			}
			layout.bars[name] = i
			continue
		}
		if _, dup := layout.indicators[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		layout.indicators[name] = i
	}

	for _, name := range requiredColumns {
		if _, ok := layout.bars[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return layout, nil
}

func (l *headerLayout) parseBar(record []string, line int) (domain.PriceBar, error) {
	ts, err := strconv.ParseInt(record[l.bars["timestamp_ms"]], 10, 64)
	if err != nil {
		return domain.PriceBar{}, fmt.Errorf("%w: timestamp_ms %q at row %d",
			ErrBadValue, record[l.bars["timestamp_ms"]], line)
	}

	bar := domain.PriceBar{TimestampMs: ts}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	}
	for _, f := range fields {
		v, err := parseFloat(record[l.bars[f.name]], f.name, line)
		if err != nil {
			return domain.PriceBar{}, err
		}
		*f.dst = v
	}
	return bar, nil
}

func parseFloat(raw, column string, line int) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q at row %d", ErrBadValue, column, raw, line)
	}
	return v, nil
}
