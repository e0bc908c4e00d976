package executor

import (
	"context"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	chain "github.com/dandagow3t/copy-trade-telegram/internal/solana"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage/memory"
)

func sigForByte(b byte) solanago.Signature {
	var sig solanago.Signature
	sig[0] = b
	return sig
}

func seedNonTerminal(t *testing.T, store *memory.ExecutionStore, signalID int64, token string, sig string) {
	t.Helper()
	exec := newExecution(signalID)
	exec.Token = token
	exec.Status = domain.ExecutionSubmitted
	if sig != "" {
		exec.Attempts = []domain.Attempt{{
			Seq:         1,
			PriorityFee: 10_000,
			Signature:   sig,
			Outcome:     domain.AttemptOutcomeTransient,
			SubmittedAt: time.Now().UTC(),
		}}
	}
	if err := store.Upsert(context.Background(), exec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestExecutor_Reconcile(t *testing.T) {
	store := memory.NewExecutionStore()

	confirmedSig := sigForByte(1)
	failedSig := sigForByte(2)
	unknownSig := sigForByte(3)

	c := &stubChain{statuses: map[string]chain.TxStatus{
		confirmedSig.String(): chain.StatusConfirmed,
		failedSig.String():    chain.StatusFailed,
		unknownSig.String():   chain.StatusUnknown,
	}}
	exec := newTestExecutor(t, &stubVenue{}, c, store)

	seedNonTerminal(t, store, 1, "AAA", confirmedSig.String())
	seedNonTerminal(t, store, 2, "BBB", failedSig.String())
	seedNonTerminal(t, store, 3, "CCC", unknownSig.String())
	seedNonTerminal(t, store, 4, "DDD", "") // never reached the network

	if err := exec.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	ctx := context.Background()

	got, _ := store.GetBySignal(ctx, 1)
	if got.Status != domain.ExecutionConfirmed {
		t.Errorf("Signal 1: got %s, want CONFIRMED", got.Status)
	}
	if got.FinalSignature == nil || *got.FinalSignature != confirmedSig.String() {
		t.Error("Signal 1: FinalSignature not adopted from the confirmed attempt")
	}

	got, _ = store.GetBySignal(ctx, 2)
	if got.Status != domain.ExecutionFailed {
		t.Errorf("Signal 2: got %s, want FAILED", got.Status)
	}

	// Ambiguous fate resolves to Abandoned, never a resubmission.
	got, _ = store.GetBySignal(ctx, 3)
	if got.Status != domain.ExecutionAbandoned {
		t.Errorf("Signal 3: got %s, want ABANDONED", got.Status)
	}

	got, _ = store.GetBySignal(ctx, 4)
	if got.Status != domain.ExecutionAbandoned {
		t.Errorf("Signal 4: got %s, want ABANDONED", got.Status)
	}

	if c.submits != 0 {
		t.Errorf("Reconcile must never submit, got %d submits", c.submits)
	}

	// Nothing non-terminal remains.
	remaining, err := store.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("ListNonTerminal failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected no non-terminal executions, got %d", len(remaining))
	}
}
