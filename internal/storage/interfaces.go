package storage

import (
	"context"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
)

// RecordResult reports the outcome of an idempotent signal insert.
type RecordResult int

const (
	// Inserted means the signal was stored for the first time.
	Inserted RecordResult = iota
	// AlreadyPresent means a signal with the same message id exists;
	// the stored record was left untouched.
	AlreadyPresent
)

// SignalStore provides idempotent persistence of trade signals.
type SignalStore interface {
	// Record inserts a signal keyed by message_id. Re-insertion under the
	// same id, identical payload or not, reports AlreadyPresent without
	// mutating the stored record.
	Record(ctx context.Context, s *domain.TradeSignal) (RecordResult, error)

	// Get retrieves a signal by message id. Returns ErrNotFound if absent.
	Get(ctx context.Context, messageID int64) (*domain.TradeSignal, error)

	// FindOpen returns the most recent Open signal for (strategy, token)
	// that has no later Close for the same pair. Returns ErrNotFound when
	// no unmatched Open exists.
	FindOpen(ctx context.Context, strategy, token string) (*domain.TradeSignal, error)

	// LastMessageID returns the highest stored message id, or 0 when the
	// store is empty. Used as the catch-up cursor on startup.
	LastMessageID(ctx context.Context) (int64, error)
}

// ExecutionStore persists trade executions keyed by their owning signal.
type ExecutionStore interface {
	// Upsert inserts or replaces the execution for its signal.
	Upsert(ctx context.Context, e *domain.TradeExecution) error

	// GetBySignal retrieves the execution owned by a signal.
	// Returns ErrNotFound if absent.
	GetBySignal(ctx context.Context, signalID int64) (*domain.TradeExecution, error)

	// FindNonTerminal returns the Pending/Submitted execution for
	// (strategy, token), or ErrNotFound. At most one may exist.
	FindNonTerminal(ctx context.Context, strategy, token string) (*domain.TradeExecution, error)

	// FindConfirmedBuy returns the most recent Confirmed buy execution for
	// (strategy, token), or ErrNotFound. Used to validate Close signals.
	FindConfirmedBuy(ctx context.Context, strategy, token string) (*domain.TradeExecution, error)

	// ListNonTerminal returns every Pending/Submitted execution, ordered by
	// creation time. Used by the restart reconciliation sweep.
	ListNonTerminal(ctx context.Context) ([]*domain.TradeExecution, error)
}

// AttemptAuditSink receives a copy of every execution attempt for offline
// analysis. Implementations must tolerate being nil-checked by callers;
// audit failures never affect the execution path.
type AttemptAuditSink interface {
	RecordAttempt(ctx context.Context, e *domain.TradeExecution, a domain.Attempt) error
}
