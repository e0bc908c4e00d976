package memory

import (
	"context"
	"sync"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.TradeSignal // keyed by message_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[int64]*domain.TradeSignal),
	}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Record inserts a signal keyed by message_id. Duplicates report
// AlreadyPresent and never mutate the stored record.
func (s *SignalStore) Record(_ context.Context, sig *domain.TradeSignal) (storage.RecordResult, error) {
	if sig == nil || sig.MessageID == 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.MessageID]; exists {
		return storage.AlreadyPresent, nil
	}

	// Store a copy to prevent external mutation
	sigCopy := *sig
	s.data[sig.MessageID] = &sigCopy
	return storage.Inserted, nil
}

// Get retrieves a signal by message id.
func (s *SignalStore) Get(_ context.Context, messageID int64) (*domain.TradeSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[messageID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	sigCopy := *sig
	return &sigCopy, nil
}

// FindOpen returns the most recent Open for (strategy, token) that is not
// superseded by a later Close for the same pair.
func (s *SignalStore) FindOpen(_ context.Context, strategy, token string) (*domain.TradeSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastOpen, lastClose *domain.TradeSignal
	for _, sig := range s.data {
		if sig.Strategy != strategy || sig.Token != token {
			continue
		}
		switch {
		case sig.IsOpen() && (lastOpen == nil || sig.MessageID > lastOpen.MessageID):
			lastOpen = sig
		case sig.IsClose() && (lastClose == nil || sig.MessageID > lastClose.MessageID):
			lastClose = sig
		}
	}

	if lastOpen == nil {
		return nil, storage.ErrNotFound
	}
	if lastClose != nil && lastClose.MessageID > lastOpen.MessageID {
		return nil, storage.ErrNotFound
	}

	openCopy := *lastOpen
	return &openCopy, nil
}

// LastMessageID returns the highest stored message id, or 0 when empty.
func (s *SignalStore) LastMessageID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for id := range s.data {
		if id > max {
			max = id
		}
	}
	return max, nil
}
