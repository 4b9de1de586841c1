package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestAlertStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()

	alerts := []*domain.Alert{
		{
			ID:          "a1",
			TimestampMs: 1000,
			StrategyID:  "rsi_reversal",
			Instrument:  "SOL-USD",
			Type:        domain.AlertPerformanceDegradation,
			Severity:    domain.SeverityWarning,
			Message:     "recent mean return dropped 12.5 points",
			Metrics:     map[string]float64{"drop": -12.5, "recent_mean": 1.5},
			Recommendations: []string{
				"review recent trades",
				"consider reducing position size",
			},
		},
		{
			ID:          "a2",
			TimestampMs: 2000,
			StrategyID:  "macd_cross",
			Instrument:  "SOL-USD",
			Type:        domain.AlertDrawdownIncrease,
			Severity:    domain.SeverityCritical,
			Message:     "drawdown past critical threshold",
		},
	}
	for _, a := range alerts {
		require.NoError(t, store.Insert(ctx, a))
	}

	got, err := store.GetSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a1", got[0].ID)
	require.Equal(t, -12.5, got[0].Metrics["drop"])
	require.Len(t, got[0].Recommendations, 2)

	got, err = store.GetSince(ctx, 1500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a2", got[0].ID)

	got, err = store.GetByKeySince(ctx, "rsi_reversal", "SOL-USD", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a1", got[0].ID)
}

func TestAlertStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()

	alert := &domain.Alert{
		ID:          "a1",
		TimestampMs: 1000,
		Type:        domain.AlertRegimeChange,
		Severity:    domain.SeverityInfo,
	}
	require.NoError(t, store.Insert(ctx, alert))

	err := store.Insert(ctx, alert)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}
