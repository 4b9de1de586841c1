package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"strategy-lab/internal/storage"
)

// Loader parses CSV files and persists the resulting frames.
type Loader struct {
	frames storage.FrameStore
	logger *zap.Logger
}

// NewLoader creates a loader over the given frame store. A nil logger is
// replaced with a no-op logger.
func NewLoader(frames storage.FrameStore, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{frames: frames, logger: logger}
}

// LoadFile ingests one CSV file for one instrument and returns the number
// of bars stored. An empty instrument derives one from the file name.
func (l *Loader) LoadFile(ctx context.Context, path, instrument string) (int, error) {
	if instrument == "" {
		instrument = InstrumentFromPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	frame, err := ReadFrame(f, instrument)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := l.frames.InsertFrame(ctx, frame); err != nil {
		return 0, fmt.Errorf("store %s: %w", instrument, err)
	}

	l.logger.Info("frame ingested",
		zap.String("instrument", instrument),
		zap.Int("bars", frame.Len()),
		zap.Int("indicator_columns", len(frame.Columns)),
	)
	return frame.Len(), nil
}

// InstrumentFromPath derives an instrument identifier from a CSV file
// name: the base name without extension, e.g. "data/BTC-USD.csv" maps to
// "BTC-USD".
func InstrumentFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
