package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// WindowStore is an in-memory implementation of storage.WindowStore.
type WindowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalkForwardWindow // keyed by run_id/index
}

// NewWindowStore creates a new in-memory walk-forward window store.
func NewWindowStore() *WindowStore {
	return &WindowStore{
		data: make(map[string]*domain.WalkForwardWindow),
	}
}

func windowKey(runID string, index int) string {
	return fmt.Sprintf("%s/%d", runID, index)
}

// Insert adds one completed window. Returns ErrDuplicateKey if
// (run_id, index) exists.
func (s *WindowStore) Insert(_ context.Context, w *domain.WalkForwardWindow) error {
	if w == nil || w.RunID == "" || w.Index < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := windowKey(w.RunID, w.Index)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *w
	copy.Params = cloneParams(w.Params)
	s.data[key] = &copy
	return nil
}

// GetByRunID retrieves all windows of a sweep, ordered by index ASC.
func (s *WindowStore) GetByRunID(_ context.Context, runID string) ([]*domain.WalkForwardWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalkForwardWindow
	for _, w := range s.data {
		if w.RunID == runID {
			copy := *w
			copy.Params = cloneParams(w.Params)
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})

	return result, nil
}

func cloneParams(params map[string]float64) map[string]float64 {
	if params == nil {
		return nil
	}
	out := make(map[string]float64, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

var _ storage.WindowStore = (*WindowStore)(nil)
