package decision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/idhash"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// lockShards bounds lock contention; pairs hash onto a fixed set of mutexes.
const lockShards = 64

// Outcome reports what the engine decided for a signal.
type Outcome string

const (
	OutcomeEnqueued     Outcome = "ENQUEUED"
	OutcomeRecordedOnly Outcome = "RECORDED_ONLY" // trading disabled
	OutcomeFiltered     Outcome = "FILTERED"      // strategy not allowlisted
	OutcomeCooldown     Outcome = "COOLDOWN"
	OutcomeOutstanding  Outcome = "OUTSTANDING"   // pair already has a live execution
	OutcomeOrphanClose  Outcome = "ORPHAN_CLOSE"  // close with no confirmed buy
	OutcomeDuplicate    Outcome = "DUPLICATE"     // signal already has an execution
	OutcomeQueueFull    Outcome = "QUEUE_FULL"
)

// Enqueuer admits executions to the worker pool without blocking.
type Enqueuer interface {
	TryEnqueue(exec *domain.TradeExecution) bool
}

// Options configures Engine.
type Options struct {
	Executions storage.ExecutionStore
	Queue      Enqueuer
	Logger     logrus.FieldLogger

	TradeOn      bool
	PositionSize float64 // SOL per buy
	SlippageBPS  int
	Cooldown     time.Duration

	// StrategyAllowed gates strategies; nil allows all.
	StrategyAllowed func(strategy string) bool
}

// Engine turns recorded signals into trade executions. All decisions for a
// (strategy, token) pair run under that pair's lock, which is what upholds
// the one-outstanding-execution rule between the existence check and the
// insert.
type Engine struct {
	executions storage.ExecutionStore
	queue      Enqueuer
	log        logrus.FieldLogger

	tradeOn         bool
	positionSize    float64
	slippageBPS     int
	cooldown        time.Duration
	strategyAllowed func(string) bool

	locks [lockShards]sync.Mutex

	// lastTrade tracks when each pair last admitted a buy.
	cooldownMu sync.Mutex
	lastTrade  map[string]time.Time

	now func() time.Time
}

// NewEngine creates a decision engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Executions == nil {
		return nil, fmt.Errorf("decision: Executions is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("decision: Queue is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	allowed := opts.StrategyAllowed
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return &Engine{
		executions:      opts.Executions,
		queue:           opts.Queue,
		log:             log,
		tradeOn:         opts.TradeOn,
		positionSize:    opts.PositionSize,
		slippageBPS:     opts.SlippageBPS,
		cooldown:        opts.Cooldown,
		strategyAllowed: allowed,
		lastTrade:       make(map[string]time.Time),
		now:             time.Now,
	}, nil
}

// HandleSignal decides what to do with a freshly recorded signal.
func (e *Engine) HandleSignal(ctx context.Context, sig *domain.TradeSignal) (Outcome, error) {
	log := e.log.WithFields(logrus.Fields{
		"message_id": sig.MessageID,
		"kind":       sig.Kind,
		"strategy":   sig.Strategy,
		"token":      sig.Token,
	})

	key := idhash.PairKey(sig.Strategy, sig.Token)
	lock := &e.locks[idhash.Shard(key, lockShards)]
	lock.Lock()
	defer lock.Unlock()

	// Redelivered signals that already produced an execution are done.
	if _, err := e.executions.GetBySignal(ctx, sig.MessageID); err == nil {
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("check existing execution: %w", err)
	}

	if !e.tradeOn {
		log.Debug("trading disabled, signal recorded only")
		return OutcomeRecordedOnly, nil
	}
	if !e.strategyAllowed(sig.Strategy) {
		log.Debug("strategy filtered")
		return OutcomeFiltered, nil
	}

	exec, outcome, err := e.buildExecution(ctx, sig, key, log)
	if err != nil {
		return "", err
	}
	if outcome != "" {
		return outcome, nil
	}

	// A pair with a live execution admits nothing new.
	if _, err := e.executions.FindNonTerminal(ctx, sig.Strategy, sig.Token); err == nil {
		log.Warn("pair already has an outstanding execution")
		return OutcomeOutstanding, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("check outstanding execution: %w", err)
	}

	// The record exists before the queue ever sees it.
	if err := e.executions.Upsert(ctx, exec); err != nil {
		return "", fmt.Errorf("persist pending execution: %w", err)
	}

	if !e.queue.TryEnqueue(exec) {
		exec.Attempts = append(exec.Attempts, domain.Attempt{
			Seq:         1,
			Outcome:     domain.AttemptOutcomeAdmission,
			Err:         "execution queue full",
			SubmittedAt: e.now().UTC(),
		})
		exec.Status = domain.ExecutionFailed
		exec.UpdatedAt = e.now().UTC()
		if err := e.executions.Upsert(ctx, exec); err != nil {
			return "", fmt.Errorf("persist admission rejection: %w", err)
		}
		log.Warn("execution queue full, trade dropped")
		return OutcomeQueueFull, nil
	}

	if exec.Direction == domain.DirectionBuy {
		e.markTraded(key)
	}
	log.Info("execution enqueued")
	return OutcomeEnqueued, nil
}

// buildExecution translates the signal into a pending execution, or reports
// a gating outcome.
func (e *Engine) buildExecution(ctx context.Context, sig *domain.TradeSignal, key string, log logrus.FieldLogger) (*domain.TradeExecution, Outcome, error) {
	now := e.now().UTC()

	switch {
	case sig.IsOpen():
		if e.inCooldown(key) {
			log.Debug("pair in cooldown, buy skipped")
			return nil, OutcomeCooldown, nil
		}
		return &domain.TradeExecution{
			SignalID:        sig.MessageID,
			Strategy:        sig.Strategy,
			Token:           sig.Token,
			ContractAddress: sig.ContractAddress,
			Direction:       domain.DirectionBuy,
			Status:          domain.ExecutionPending,
			PositionSize:    e.positionSize,
			SlippageBPS:     e.slippageBPS,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, "", nil

	case sig.IsClose():
		buy, err := e.executions.FindConfirmedBuy(ctx, sig.Strategy, sig.Token)
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("close signal has no confirmed buy, rejected")
			return nil, OutcomeOrphanClose, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("find confirmed buy: %w", err)
		}
		if buy.FilledAmount == 0 {
			log.Warn("confirmed buy has no recorded fill, close rejected")
			return nil, OutcomeOrphanClose, nil
		}

		contract := sig.ContractAddress
		if contract == "" {
			contract = buy.ContractAddress
		}
		return &domain.TradeExecution{
			SignalID:        sig.MessageID,
			Strategy:        sig.Strategy,
			Token:           sig.Token,
			ContractAddress: contract,
			Direction:       domain.DirectionSell,
			Status:          domain.ExecutionPending,
			PositionSize:    float64(buy.FilledAmount),
			SlippageBPS:     e.slippageBPS,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, "", nil
	}

	return nil, "", fmt.Errorf("unknown signal kind %q", sig.Kind)
}

func (e *Engine) inCooldown(key string) bool {
	if e.cooldown <= 0 {
		return false
	}
	e.cooldownMu.Lock()
	defer e.cooldownMu.Unlock()
	last, ok := e.lastTrade[key]
	return ok && e.now().Sub(last) < e.cooldown
}

func (e *Engine) markTraded(key string) {
	e.cooldownMu.Lock()
	defer e.cooldownMu.Unlock()
	e.lastTrade[key] = e.now()
}
