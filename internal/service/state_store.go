package service

import (
	"context"
	"sync"

	"github.com/GoPolymarket/levergate/internal/model"
)

// MemoryStateStore keeps the engine state in process. Used when neither redis
// nor postgres is configured.
type MemoryStateStore struct {
	mu    sync.RWMutex
	state *model.EngineState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (s *MemoryStateStore) Load(ctx context.Context) (*model.EngineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, nil
	}
	return s.state.Clone(), nil
}

func (s *MemoryStateStore) Save(ctx context.Context, state *model.EngineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	return nil
}
