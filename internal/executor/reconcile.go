package executor

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	chain "github.com/dandagow3t/copy-trade-telegram/internal/solana"
)

// Reconcile resolves executions a previous process left non-terminal. The
// chain is the only authority consulted: a signature that confirmed is marked
// Confirmed, one that failed is marked Failed, and everything whose fate
// cannot be established is Abandoned. Nothing is ever resubmitted from here.
func (e *Executor) Reconcile(ctx context.Context) error {
	execs, err := e.executions.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("list non-terminal executions: %w", err)
	}

	for _, exec := range execs {
		log := e.log.WithFields(logrus.Fields{
			"signal_id": exec.SignalID,
			"strategy":  exec.Strategy,
			"token":     exec.Token,
		})

		status := e.resolve(ctx, exec, log)
		switch status {
		case chain.StatusConfirmed:
			sigStr := exec.LastSignature()
			exec.Status = domain.ExecutionConfirmed
			exec.FinalSignature = &sigStr
			log.WithField("signature", sigStr).Info("reconciled as confirmed")
		case chain.StatusFailed:
			exec.Status = domain.ExecutionFailed
			log.Info("reconciled as failed")
		default:
			exec.Status = domain.ExecutionAbandoned
			log.Info("reconciled as abandoned")
		}

		exec.UpdatedAt = time.Now().UTC()
		if err := e.executions.Upsert(ctx, exec); err != nil {
			return fmt.Errorf("persist reconciled execution %d: %w", exec.SignalID, err)
		}
	}

	return nil
}

func (e *Executor) resolve(ctx context.Context, exec *domain.TradeExecution, log logrus.FieldLogger) chain.TxStatus {
	sigStr := exec.LastSignature()
	if sigStr == "" {
		return chain.StatusUnknown
	}

	sig, err := solanago.SignatureFromBase58(sigStr)
	if err != nil {
		log.WithError(err).Warn("stored signature unparseable")
		return chain.StatusUnknown
	}

	status, err := e.chain.SignatureStatus(ctx, sig)
	if err != nil {
		log.WithError(err).Warn("signature status lookup failed")
		return chain.StatusUnknown
	}
	return status
}
