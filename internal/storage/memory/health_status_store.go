package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// HealthStatusStore is an in-memory implementation of storage.HealthStatusStore.
type HealthStatusStore struct {
	mu   sync.RWMutex
	data map[statusKey]*domain.HealthStatus
}

type statusKey struct {
	strategyID string
	instrument string
}

// NewHealthStatusStore creates a new in-memory health status store.
func NewHealthStatusStore() *HealthStatusStore {
	return &HealthStatusStore{
		data: make(map[statusKey]*domain.HealthStatus),
	}
}

// Upsert inserts or replaces the verdict for a (strategy, instrument) pair.
func (s *HealthStatusStore) Upsert(_ context.Context, st *domain.HealthStatus) error {
	if st == nil || st.StrategyID == "" || st.Instrument == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[statusKey{st.StrategyID, st.Instrument}] = cloneStatus(st)
	return nil
}

// GetByKey retrieves the verdict for a pair. Returns ErrNotFound if the
// pair has never been observed.
func (s *HealthStatusStore) GetByKey(_ context.Context, strategyID, instrument string) (*domain.HealthStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data[statusKey{strategyID, instrument}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneStatus(st), nil
}

// GetAll retrieves every pair's verdict, ordered by strategy then instrument.
func (s *HealthStatusStore) GetAll(_ context.Context) ([]*domain.HealthStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.HealthStatus, 0, len(s.data))
	for _, st := range s.data {
		result = append(result, cloneStatus(st))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StrategyID != result[j].StrategyID {
			return result[i].StrategyID < result[j].StrategyID
		}
		return result[i].Instrument < result[j].Instrument
	})

	return result, nil
}

func cloneStatus(st *domain.HealthStatus) *domain.HealthStatus {
	copy := *st
	copy.PauseReasons = append([]string(nil), st.PauseReasons...)
	return &copy
}

var _ storage.HealthStatusStore = (*HealthStatusStore)(nil)
