package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Alert // keyed by alert id
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[string]*domain.Alert),
	}
}

// Insert adds a new alert. Returns ErrDuplicateKey if the id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[a.ID] = cloneAlert(a)
	return nil
}

// GetSince retrieves all alerts with timestamp >= since, ordered by
// timestamp ASC.
func (s *AlertStore) GetSince(_ context.Context, since int64) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.data {
		if a.TimestampMs >= since {
			result = append(result, cloneAlert(a))
		}
	}
	sortAlerts(result)
	return result, nil
}

// GetByKeySince retrieves alerts for a (strategy, instrument) pair with
// timestamp >= since, ordered by timestamp ASC.
func (s *AlertStore) GetByKeySince(_ context.Context, strategyID, instrument string, since int64) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Alert
	for _, a := range s.data {
		if a.StrategyID == strategyID && a.Instrument == instrument && a.TimestampMs >= since {
			result = append(result, cloneAlert(a))
		}
	}
	sortAlerts(result)
	return result, nil
}

func sortAlerts(alerts []*domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].TimestampMs != alerts[j].TimestampMs {
			return alerts[i].TimestampMs < alerts[j].TimestampMs
		}
		return alerts[i].ID < alerts[j].ID
	})
}

func cloneAlert(a *domain.Alert) *domain.Alert {
	copy := *a
	if a.Metrics != nil {
		copy.Metrics = make(map[string]float64, len(a.Metrics))
		for k, v := range a.Metrics {
			copy.Metrics[k] = v
		}
	}
	copy.Recommendations = append([]string(nil), a.Recommendations...)
	return &copy
}

var _ storage.AlertStore = (*AlertStore)(nil)
