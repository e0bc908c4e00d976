package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// seedExecution records the owning signal and upserts one execution.
func seedExecution(t *testing.T, ctx context.Context, pool *Pool, signalID int64, strategy, token string, dir domain.TradeDirection, status domain.ExecutionStatus) *domain.TradeExecution {
	t.Helper()

	signals := NewSignalStore(pool)
	_, err := signals.Record(ctx, testOpenSignal(signalID, strategy, token))
	require.NoError(t, err)

	exec := &domain.TradeExecution{
		SignalID:        signalID,
		Strategy:        strategy,
		Token:           token,
		ContractAddress: "So11111111111111111111111111111111111111112",
		Direction:       dir,
		Status:          status,
		PositionSize:    0.1,
		SlippageBPS:     250,
		CreatedAt:       time.Unix(1700000000+signalID, 0).UTC(),
		UpdatedAt:       time.Unix(1700000000+signalID, 0).UTC(),
	}
	require.NoError(t, NewExecutionStore(pool).Upsert(ctx, exec))
	return exec
}

func TestExecutionStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionStore(pool)
	ctx := context.Background()

	exec := seedExecution(t, ctx, pool, 101, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionPending)

	got, err := store.GetBySignal(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPending, got.Status)
	assert.Empty(t, got.Attempts)
	assert.Nil(t, got.FinalSignature)

	// Append an attempt and confirm; upsert replaces the row.
	sig := "5xAbCdEf"
	exec.Attempts = append(exec.Attempts, domain.Attempt{
		Seq:         1,
		PriorityFee: 10_000,
		Signature:   sig,
		Outcome:     domain.AttemptOutcomeConfirmed,
		SubmittedAt: time.Unix(1700000300, 0).UTC(),
	})
	exec.Status = domain.ExecutionConfirmed
	exec.FinalSignature = &sig
	exec.UpdatedAt = time.Unix(1700000301, 0).UTC()
	require.NoError(t, store.Upsert(ctx, exec))

	got, err = store.GetBySignal(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionConfirmed, got.Status)
	require.Len(t, got.Attempts, 1)
	assert.Equal(t, uint64(10_000), got.Attempts[0].PriorityFee)
	assert.Equal(t, sig, got.Attempts[0].Signature)
	require.NotNil(t, got.FinalSignature)
	assert.Equal(t, sig, *got.FinalSignature)
}

func TestExecutionStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionStore(pool)
	ctx := context.Background()

	_, err := store.GetBySignal(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecutionStore_FindNonTerminal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionStore(pool)
	ctx := context.Background()

	seedExecution(t, ctx, pool, 1, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionConfirmed)
	seedExecution(t, ctx, pool, 2, "sniper", "BAR", domain.DirectionBuy, domain.ExecutionSubmitted)

	got, err := store.FindNonTerminal(ctx, "sniper", "BAR")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SignalID)

	_, err = store.FindNonTerminal(ctx, "sniper", "FOO")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecutionStore_NonTerminalUniquePerPair(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionStore(pool)
	ctx := context.Background()

	seedExecution(t, ctx, pool, 1, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionPending)

	// A second outstanding execution for the same pair violates the
	// partial unique index.
	signals := NewSignalStore(pool)
	_, err := signals.Record(ctx, testOpenSignal(2, "sniper", "FOO"))
	require.NoError(t, err)

	err = store.Upsert(ctx, &domain.TradeExecution{
		SignalID:     2,
		Strategy:     "sniper",
		Token:        "FOO",
		Direction:    domain.DirectionBuy,
		Status:       domain.ExecutionPending,
		PositionSize: 0.1,
		SlippageBPS:  250,
		CreatedAt:    time.Unix(1700000002, 0).UTC(),
		UpdatedAt:    time.Unix(1700000002, 0).UTC(),
	})
	require.Error(t, err)
}

func TestExecutionStore_FindConfirmedBuy(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionStore(pool)
	ctx := context.Background()

	seedExecution(t, ctx, pool, 1, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionConfirmed)
	seedExecution(t, ctx, pool, 2, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionConfirmed)
	seedExecution(t, ctx, pool, 3, "sniper", "FOO", domain.DirectionSell, domain.ExecutionConfirmed)
	seedExecution(t, ctx, pool, 4, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionAbandoned)

	got, err := store.FindConfirmedBuy(ctx, "sniper", "FOO")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SignalID)

	_, err = store.FindConfirmedBuy(ctx, "sniper", "BAR")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecutionStore_ListNonTerminal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionStore(pool)
	ctx := context.Background()

	seedExecution(t, ctx, pool, 1, "sniper", "FOO", domain.DirectionBuy, domain.ExecutionPending)
	seedExecution(t, ctx, pool, 2, "sniper", "BAR", domain.DirectionBuy, domain.ExecutionSubmitted)
	seedExecution(t, ctx, pool, 3, "scalper", "FOO", domain.DirectionBuy, domain.ExecutionConfirmed)

	got, err := store.ListNonTerminal(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].SignalID)
	assert.Equal(t, int64(2), got[1].SignalID)
}
