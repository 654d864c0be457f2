package memory

import (
	"context"
	"sync"

	"daily-reflection-service/internal/domain"
)

// StateStore is an in-memory implementation of app.StateStore. Absent state
// loads as the zero value, which the tracker treats as "use defaults".
type StateStore struct {
	mu    sync.RWMutex
	state domain.PersistedState
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Load(_ context.Context) (domain.PersistedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *StateStore) Save(_ context.Context, state domain.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}
