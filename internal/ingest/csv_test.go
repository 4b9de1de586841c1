package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage/memory"
)

const sampleCSV = `timestamp_ms,open,high,low,close,volume,rsi_14,sma_20
1000,100,105,99,104,1200,55.2,101.5
2000,104,108,103,107,900,61.0,102.1
3000,107,109,104,105,1100,58.4,102.8
`

func TestReadFrame(t *testing.T) {
	frame, err := ReadFrame(strings.NewReader(sampleCSV), "BTC-USD")
	require.NoError(t, err)

	require.Equal(t, "BTC-USD", frame.Instrument)
	require.Equal(t, 3, frame.Len())
	require.Equal(t, int64(1000), frame.Bars[0].TimestampMs)
	require.Equal(t, 104.0, frame.Bars[0].Close)
	require.Equal(t, 1100.0, frame.Bars[2].Volume)

	rsi, ok := frame.Column("rsi_14")
	require.True(t, ok)
	require.Equal(t, []float64{55.2, 61.0, 58.4}, rsi)

	sma, ok := frame.Column("sma_20")
	require.True(t, ok)
	require.Len(t, sma, 3)
}

func TestReadFrameNoIndicatorColumns(t *testing.T) {
	csv := "timestamp_ms,open,high,low,close,volume\n1000,1,2,0.5,1.5,10\n"
	frame, err := ReadFrame(strings.NewReader(csv), "X")
	require.NoError(t, err)
	require.Equal(t, 1, frame.Len())
	require.Empty(t, frame.Columns)
}

func TestReadFrameHeaderOrderIrrelevant(t *testing.T) {
	csv := "close,volume,timestamp_ms,low,high,open\n104,1200,1000,99,105,100\n"
	frame, err := ReadFrame(strings.NewReader(csv), "X")
	require.NoError(t, err)
	require.Equal(t, 104.0, frame.Bars[0].Close)
	require.Equal(t, 100.0, frame.Bars[0].Open)
}

func TestReadFrameMissingRequiredColumn(t *testing.T) {
	csv := "timestamp_ms,open,high,low,close\n1000,1,2,0.5,1.5\n"
	_, err := ReadFrame(strings.NewReader(csv), "X")
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadFrameDuplicateColumn(t *testing.T) {
	csv := "timestamp_ms,open,high,low,close,volume,rsi_14,rsi_14\n"
	_, err := ReadFrame(strings.NewReader(csv), "X")
	require.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestReadFrameBadValue(t *testing.T) {
	csv := "timestamp_ms,open,high,low,close,volume\n1000,1,2,0.5,abc,10\n"
	_, err := ReadFrame(strings.NewReader(csv), "X")
	require.ErrorIs(t, err, ErrBadValue)
}

func TestReadFrameEmpty(t *testing.T) {
	_, err := ReadFrame(strings.NewReader(""), "X")
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadFrameRejectsUnorderedTimestamps(t *testing.T) {
	csv := "timestamp_ms,open,high,low,close,volume\n2000,1,2,0.5,1.5,10\n1000,1,2,0.5,1.5,10\n"
	_, err := ReadFrame(strings.NewReader(csv), "X")
	require.ErrorIs(t, err, domain.ErrUnorderedTimestamps)
}

func TestLoaderLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ETH-USD.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	store := memory.NewFrameStore()
	loader := NewLoader(store, nil)

	n, err := loader.LoadFile(context.Background(), path, "")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	frame, err := store.GetFrame(context.Background(), "ETH-USD", 0, 10_000)
	require.NoError(t, err)
	require.Equal(t, 3, frame.Len())
}

func TestLoaderDuplicateIngestFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BTC-USD.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	loader := NewLoader(memory.NewFrameStore(), nil)

	_, err := loader.LoadFile(context.Background(), path, "BTC-USD")
	require.NoError(t, err)

	_, err = loader.LoadFile(context.Background(), path, "BTC-USD")
	require.Error(t, err)
}

func TestInstrumentFromPath(t *testing.T) {
	require.Equal(t, "BTC-USD", InstrumentFromPath("data/BTC-USD.csv"))
	require.Equal(t, "eth_usd", InstrumentFromPath("eth_usd"))
}
