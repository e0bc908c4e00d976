package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

func buyExecution(signalID int64, strategy, token string, status domain.ExecutionStatus) *domain.TradeExecution {
	return &domain.TradeExecution{
		SignalID:     signalID,
		Strategy:     strategy,
		Token:        token,
		Direction:    domain.DirectionBuy,
		Status:       status,
		PositionSize: 0.1,
		SlippageBPS:  250,
		CreatedAt:    time.Unix(1700000000+signalID, 0),
		UpdatedAt:    time.Unix(1700000000+signalID, 0),
	}
}

func TestExecutionStore_UpsertAndGet(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	exec := buyExecution(101, "sniper", "FOO", domain.ExecutionPending)
	if err := store.Upsert(ctx, exec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetBySignal(ctx, 101)
	if err != nil {
		t.Fatalf("GetBySignal failed: %v", err)
	}
	if got.Status != domain.ExecutionPending {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, domain.ExecutionPending)
	}

	// Upsert replaces the record in place.
	exec.Status = domain.ExecutionConfirmed
	sig := "5xAbC"
	exec.FinalSignature = &sig
	exec.Attempts = append(exec.Attempts, domain.Attempt{
		Seq:         1,
		PriorityFee: 10000,
		Signature:   sig,
		Outcome:     domain.AttemptOutcomeConfirmed,
		SubmittedAt: time.Unix(1700000200, 0),
	})
	if err := store.Upsert(ctx, exec); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err = store.GetBySignal(ctx, 101)
	if err != nil {
		t.Fatalf("GetBySignal failed: %v", err)
	}
	if got.Status != domain.ExecutionConfirmed {
		t.Errorf("Status mismatch after upsert: got %s", got.Status)
	}
	if len(got.Attempts) != 1 {
		t.Fatalf("Expected 1 attempt, got %d", len(got.Attempts))
	}
	if got.FinalSignature == nil || *got.FinalSignature != sig {
		t.Errorf("FinalSignature not persisted")
	}
}

func TestExecutionStore_UpsertInvalid(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil execution, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.TradeExecution{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero signal id, got %v", err)
	}
}

func TestExecutionStore_CopyIsolation(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	exec := buyExecution(101, "sniper", "FOO", domain.ExecutionSubmitted)
	exec.Attempts = []domain.Attempt{{Seq: 1, PriorityFee: 10000, Outcome: domain.AttemptOutcomeTransient}}
	if err := store.Upsert(ctx, exec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	exec.Attempts[0].PriorityFee = 99999
	exec.Status = domain.ExecutionFailed

	got, err := store.GetBySignal(ctx, 101)
	if err != nil {
		t.Fatalf("GetBySignal failed: %v", err)
	}
	if got.Attempts[0].PriorityFee != 10000 {
		t.Errorf("Stored attempt mutated through caller reference")
	}
	if got.Status != domain.ExecutionSubmitted {
		t.Errorf("Stored status mutated through caller reference")
	}
}

func TestExecutionStore_FindNonTerminal(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	execs := []*domain.TradeExecution{
		buyExecution(1, "sniper", "FOO", domain.ExecutionConfirmed),
		buyExecution(2, "sniper", "BAR", domain.ExecutionSubmitted),
		buyExecution(3, "scalper", "FOO", domain.ExecutionFailed),
	}
	for _, exec := range execs {
		if err := store.Upsert(ctx, exec); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.FindNonTerminal(ctx, "sniper", "BAR")
	if err != nil {
		t.Fatalf("FindNonTerminal failed: %v", err)
	}
	if got.SignalID != 2 {
		t.Errorf("Expected signal 2, got %d", got.SignalID)
	}

	// Terminal statuses never match.
	if _, err := store.FindNonTerminal(ctx, "sniper", "FOO"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for confirmed execution, got %v", err)
	}
	if _, err := store.FindNonTerminal(ctx, "scalper", "FOO"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for failed execution, got %v", err)
	}
}

func TestExecutionStore_FindConfirmedBuy(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	sell := buyExecution(4, "sniper", "FOO", domain.ExecutionConfirmed)
	sell.Direction = domain.DirectionSell

	execs := []*domain.TradeExecution{
		buyExecution(1, "sniper", "FOO", domain.ExecutionConfirmed),
		buyExecution(2, "sniper", "FOO", domain.ExecutionConfirmed),
		buyExecution(3, "sniper", "FOO", domain.ExecutionAbandoned),
		sell,
	}
	for _, exec := range execs {
		if err := store.Upsert(ctx, exec); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.FindConfirmedBuy(ctx, "sniper", "FOO")
	if err != nil {
		t.Fatalf("FindConfirmedBuy failed: %v", err)
	}
	if got.SignalID != 2 {
		t.Errorf("Expected most recent confirmed buy (signal 2), got %d", got.SignalID)
	}

	if _, err := store.FindConfirmedBuy(ctx, "sniper", "BAR"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestExecutionStore_ListNonTerminal(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	execs := []*domain.TradeExecution{
		buyExecution(1, "sniper", "FOO", domain.ExecutionPending),
		buyExecution(2, "sniper", "BAR", domain.ExecutionSubmitted),
		buyExecution(3, "scalper", "FOO", domain.ExecutionConfirmed),
		buyExecution(4, "scalper", "BAR", domain.ExecutionAbandoned),
	}
	for _, exec := range execs {
		if err := store.Upsert(ctx, exec); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("ListNonTerminal failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 non-terminal executions, got %d", len(got))
	}
	for _, exec := range got {
		if exec.Status.Terminal() {
			t.Errorf("Terminal execution %d returned by ListNonTerminal", exec.SignalID)
		}
	}
}

func TestExecutionStore_ListNonTerminalOrderedByCreation(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()

	// Inserted out of creation order; buyExecution derives CreatedAt from
	// the signal id.
	for _, id := range []int64{30, 10, 20} {
		if err := store.Upsert(ctx, buyExecution(id, "sniper", "FOO", domain.ExecutionPending)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("ListNonTerminal failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 executions, got %d", len(got))
	}
	for i, want := range []int64{10, 20, 30} {
		if got[i].SignalID != want {
			t.Errorf("Position %d: got signal %d, want %d", i, got[i].SignalID, want)
		}
	}
}
