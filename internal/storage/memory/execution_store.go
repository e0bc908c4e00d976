package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// ExecutionStore is an in-memory implementation of storage.ExecutionStore.
type ExecutionStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.TradeExecution // keyed by signal_id
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		data: make(map[int64]*domain.TradeExecution),
	}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// Upsert inserts or fully replaces the execution record for its signal.
func (s *ExecutionStore) Upsert(_ context.Context, exec *domain.TradeExecution) error {
	if exec == nil || exec.SignalID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[exec.SignalID] = copyExecution(exec)
	return nil
}

// GetBySignal retrieves the execution tied to a signal.
func (s *ExecutionStore) GetBySignal(_ context.Context, signalID int64) (*domain.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyExecution(exec), nil
}

// FindNonTerminal returns the outstanding execution for (strategy, token),
// if any. At most one can exist at a time.
func (s *ExecutionStore) FindNonTerminal(_ context.Context, strategy, token string) (*domain.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, exec := range s.data {
		if exec.Strategy == strategy && exec.Token == token && !exec.Status.Terminal() {
			return copyExecution(exec), nil
		}
	}
	return nil, storage.ErrNotFound
}

// FindConfirmedBuy returns the most recent confirmed buy execution for
// (strategy, token).
func (s *ExecutionStore) FindConfirmedBuy(_ context.Context, strategy, token string) (*domain.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.TradeExecution
	for _, exec := range s.data {
		if exec.Strategy != strategy || exec.Token != token {
			continue
		}
		if exec.Direction != domain.DirectionBuy || exec.Status != domain.ExecutionConfirmed {
			continue
		}
		if latest == nil || exec.SignalID > latest.SignalID {
			latest = exec
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return copyExecution(latest), nil
}

// ListNonTerminal returns every execution that has not reached a terminal
// status, for restart reconciliation.
func (s *ExecutionStore) ListNonTerminal(_ context.Context) ([]*domain.TradeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeExecution
	for _, exec := range s.data {
		if !exec.Status.Terminal() {
			out = append(out, copyExecution(exec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SignalID < out[j].SignalID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func copyExecution(exec *domain.TradeExecution) *domain.TradeExecution {
	execCopy := *exec
	if exec.Attempts != nil {
		execCopy.Attempts = make([]domain.Attempt, len(exec.Attempts))
		copy(execCopy.Attempts, exec.Attempts)
	}
	if exec.FinalSignature != nil {
		sig := *exec.FinalSignature
		execCopy.FinalSignature = &sig
	}
	return &execCopy
}
