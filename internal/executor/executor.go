package executor

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/observability"
	"github.com/dandagow3t/copy-trade-telegram/internal/signer"
	chain "github.com/dandagow3t/copy-trade-telegram/internal/solana"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
	"github.com/dandagow3t/copy-trade-telegram/internal/venue"
)

// WSOLMint is wrapped SOL, the quote side of every position.
const WSOLMint = "So11111111111111111111111111111111111111112"

const lamportsPerSOL = 1_000_000_000

// Options configures Executor.
type Options struct {
	Executions storage.ExecutionStore
	Audit      storage.AttemptAuditSink // optional
	Venue      venue.Venue
	Chain      chain.Chain
	Signer     signer.Signer
	Logger     logrus.FieldLogger

	PriorityFeeBase uint64
	PriorityFeeMult float64
	PriorityFeeMax  uint64
	MaxAttempts     int
	ConfirmTimeout  time.Duration
}

// Executor drives a trade execution through its attempt loop: quote, build,
// sign, submit, confirm. Transient failures retry with an escalated priority
// fee; permanent failures stop immediately. The execution row is persisted
// after every attempt, before anything else happens.
type Executor struct {
	executions storage.ExecutionStore
	audit      storage.AttemptAuditSink
	venue      venue.Venue
	chain      chain.Chain
	signer     signer.Signer
	log        logrus.FieldLogger

	feeBase        uint64
	feeMult        float64
	feeMax         uint64
	maxAttempts    int
	confirmTimeout time.Duration
}

// New creates an Executor.
func New(opts Options) (*Executor, error) {
	if opts.Executions == nil {
		return nil, fmt.Errorf("executor: Executions is required")
	}
	if opts.Venue == nil {
		return nil, fmt.Errorf("executor: Venue is required")
	}
	if opts.Chain == nil {
		return nil, fmt.Errorf("executor: Chain is required")
	}
	if opts.Signer == nil {
		return nil, fmt.Errorf("executor: Signer is required")
	}
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("executor: MaxAttempts must be >= 1")
	}
	if opts.PriorityFeeMult < 1 {
		return nil, fmt.Errorf("executor: PriorityFeeMult must be >= 1")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{
		executions:     opts.Executions,
		audit:          opts.Audit,
		venue:          opts.Venue,
		chain:          opts.Chain,
		signer:         opts.Signer,
		log:            log,
		feeBase:        opts.PriorityFeeBase,
		feeMult:        opts.PriorityFeeMult,
		feeMax:         opts.PriorityFeeMax,
		maxAttempts:    opts.MaxAttempts,
		confirmTimeout: opts.ConfirmTimeout,
	}, nil
}

// Execute runs the attempt loop for one execution until it reaches a
// terminal status. The returned error reports infrastructure trouble
// (persistence), not trade failure; trade failure lands in the record.
func (e *Executor) Execute(ctx context.Context, exec *domain.TradeExecution) error {
	log := e.log.WithFields(logrus.Fields{
		"signal_id": exec.SignalID,
		"strategy":  exec.Strategy,
		"token":     exec.Token,
		"direction": exec.Direction,
		"venue":     e.venue.Name(),
	})

	if exec.ContractAddress == "" {
		return e.finishPermanent(ctx, exec, 1, 0, "missing contract address", log)
	}

	for seq := len(exec.Attempts) + 1; seq <= e.maxAttempts; seq++ {
		fee := e.feeForAttempt(seq)
		attemptLog := log.WithFields(logrus.Fields{"attempt": seq, "priority_fee": fee})

		sig, quoted, err := e.submit(ctx, exec, fee)
		if err != nil {
			// Nothing reached the network: no signature to track.
			if isPermanent(err) {
				return e.finishPermanent(ctx, exec, seq, fee, err.Error(), attemptLog)
			}
			observability.RecordAttempt(domain.AttemptOutcomeTransient, fee)
			exec.Attempts = append(exec.Attempts, domain.Attempt{
				Seq:         seq,
				PriorityFee: fee,
				Outcome:     domain.AttemptOutcomeTransient,
				Err:         err.Error(),
				SubmittedAt: time.Now().UTC(),
			})
			exec.UpdatedAt = time.Now().UTC()
			if err := e.persist(ctx, exec); err != nil {
				return err
			}
			attemptLog.WithError(err).Warn("attempt failed before submission, will retry")
			if ctx.Err() != nil {
				// Shutdown mid-loop: leave the record non-terminal for the
				// reconciliation sweep.
				return ctx.Err()
			}
			continue
		}

		// The transaction is on the wire. Persist the signature and the
		// SUBMITTED status before waiting: a crash during the confirmation
		// wait must leave enough behind for Reconcile to settle against
		// the chain instead of abandoning a swap that may have landed.
		sigStr := sig.String()
		exec.Attempts = append(exec.Attempts, domain.Attempt{
			Seq:         seq,
			PriorityFee: fee,
			Signature:   sigStr,
			Outcome:     domain.AttemptOutcomeSubmitted,
			SubmittedAt: time.Now().UTC(),
		})
		exec.Status = domain.ExecutionSubmitted
		exec.UpdatedAt = time.Now().UTC()
		if err := e.persist(ctx, exec); err != nil {
			return err
		}
		attemptLog.WithField("signature", sigStr).Debug("transaction submitted")

		last := &exec.Attempts[len(exec.Attempts)-1]
		if err := e.confirm(ctx, sig); err != nil {
			last.Err = err.Error()
			if isPermanent(err) {
				observability.RecordAttempt(domain.AttemptOutcomePermanent, fee)
				last.Outcome = domain.AttemptOutcomePermanent
				exec.Status = domain.ExecutionFailed
				exec.UpdatedAt = time.Now().UTC()
				if err := e.persist(ctx, exec); err != nil {
					return err
				}
				attemptLog.WithField("reason", last.Err).Warn("execution failed permanently")
				return nil
			}
			observability.RecordAttempt(domain.AttemptOutcomeTransient, fee)
			last.Outcome = domain.AttemptOutcomeTransient
			exec.Status = domain.ExecutionPending
			exec.UpdatedAt = time.Now().UTC()
			if err := e.persist(ctx, exec); err != nil {
				return err
			}
			attemptLog.WithError(err).Warn("attempt failed, will retry")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		observability.RecordAttempt(domain.AttemptOutcomeConfirmed, fee)
		last.Outcome = domain.AttemptOutcomeConfirmed
		exec.Status = domain.ExecutionConfirmed
		exec.FinalSignature = &sigStr
		exec.FilledAmount = quoted
		exec.UpdatedAt = time.Now().UTC()
		if err := e.persist(ctx, exec); err != nil {
			return err
		}
		attemptLog.WithField("signature", sigStr).Info("execution confirmed")
		return nil
	}

	exec.Status = domain.ExecutionAbandoned
	exec.UpdatedAt = time.Now().UTC()
	if err := e.persist(ctx, exec); err != nil {
		return err
	}
	log.WithField("attempts", len(exec.Attempts)).Warn("execution abandoned after retries")
	return nil
}

// submit performs the quote-build-sign-submit half of one attempt. A nil
// error means the transaction reached the network under the returned
// signature; the second return value is the quoted output amount.
func (e *Executor) submit(ctx context.Context, exec *domain.TradeExecution, fee uint64) (solanago.Signature, uint64, error) {
	var zero solanago.Signature

	req, err := quoteRequest(exec)
	if err != nil {
		return zero, 0, nonRetryable(err)
	}

	quote, err := e.venue.GetQuote(ctx, req)
	if err != nil {
		return zero, 0, fmt.Errorf("quote: %w", err)
	}

	tx, err := e.venue.BuildSwap(ctx, quote, e.signer.PublicKey(), fee)
	if err != nil {
		return zero, 0, fmt.Errorf("build swap: %w", err)
	}

	if err := e.signer.Sign(tx); err != nil {
		return zero, 0, nonRetryable(fmt.Errorf("sign: %w", err))
	}

	sig, err := e.chain.Submit(ctx, tx)
	if err != nil {
		return zero, 0, fmt.Errorf("submit: %w", err)
	}
	return sig, quote.OutAmount, nil
}

// confirm waits for a submitted signature to settle, bounded by the
// configured confirmation timeout.
func (e *Executor) confirm(ctx context.Context, sig solanago.Signature) error {
	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	submitted := time.Now()
	if err := e.chain.WaitForConfirmation(confirmCtx, sig); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	observability.RecordConfirmLatency(time.Since(submitted).Seconds())
	return nil
}

// finishPermanent records a permanent failure that happened before anything
// reached the network, so the attempt carries no signature.
func (e *Executor) finishPermanent(ctx context.Context, exec *domain.TradeExecution, seq int, fee uint64, reason string, log logrus.FieldLogger) error {
	observability.RecordAttempt(domain.AttemptOutcomePermanent, fee)
	exec.Attempts = append(exec.Attempts, domain.Attempt{
		Seq:         seq,
		PriorityFee: fee,
		Outcome:     domain.AttemptOutcomePermanent,
		Err:         reason,
		SubmittedAt: time.Now().UTC(),
	})
	exec.Status = domain.ExecutionFailed
	exec.UpdatedAt = time.Now().UTC()
	if err := e.persist(ctx, exec); err != nil {
		return err
	}
	log.WithField("reason", reason).Warn("execution failed permanently")
	return nil
}

// persist writes the execution row and mirrors the newest attempt to the
// audit sink. Audit failures are logged, never propagated.
func (e *Executor) persist(ctx context.Context, exec *domain.TradeExecution) error {
	if err := e.executions.Upsert(ctx, exec); err != nil {
		return fmt.Errorf("persist execution %d: %w", exec.SignalID, err)
	}
	if exec.Status.Terminal() {
		observability.RecordExecutionFinished(string(exec.Status))
	}
	if e.audit != nil && len(exec.Attempts) > 0 {
		last := exec.Attempts[len(exec.Attempts)-1]
		if err := e.audit.RecordAttempt(ctx, exec, last); err != nil {
			e.log.WithError(err).WithField("signal_id", exec.SignalID).Warn("attempt audit write failed")
		}
	}
	return nil
}

// feeForAttempt escalates geometrically from the base fee, capped at feeMax.
func (e *Executor) feeForAttempt(seq int) uint64 {
	fee := float64(e.feeBase)
	for i := 1; i < seq; i++ {
		fee *= e.feeMult
		if fee >= float64(e.feeMax) {
			return e.feeMax
		}
	}
	if e.feeMax > 0 && fee > float64(e.feeMax) {
		return e.feeMax
	}
	return uint64(fee)
}

// quoteRequest maps an execution onto the venue request for its direction.
// Buys spend PositionSize SOL; sells move PositionSize raw token units.
func quoteRequest(exec *domain.TradeExecution) (venue.QuoteRequest, error) {
	switch exec.Direction {
	case domain.DirectionBuy:
		return venue.QuoteRequest{
			InputMint:   WSOLMint,
			OutputMint:  exec.ContractAddress,
			Amount:      uint64(exec.PositionSize * lamportsPerSOL),
			SlippageBPS: exec.SlippageBPS,
		}, nil
	case domain.DirectionSell:
		return venue.QuoteRequest{
			InputMint:   exec.ContractAddress,
			OutputMint:  WSOLMint,
			Amount:      uint64(exec.PositionSize),
			SlippageBPS: exec.SlippageBPS,
		}, nil
	}
	return venue.QuoteRequest{}, fmt.Errorf("unknown direction %q", exec.Direction)
}
