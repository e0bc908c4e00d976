package executor

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/observability"
)

// Pool runs executions on a fixed set of workers behind a bounded queue.
// Admission is non-blocking: when the queue is full the caller is told so
// and decides what to record.
type Pool struct {
	exec    *Executor
	queue   chan *domain.TradeExecution
	workers int
	log     logrus.FieldLogger

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewPool creates a worker pool over the executor.
func NewPool(exec *Executor, queueSize, workers int, log logrus.FieldLogger) *Pool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{
		exec:    exec,
		queue:   make(chan *domain.TradeExecution, queueSize),
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. ctx cancellation aborts in-flight attempt
// loops; queued work keeps draining until Stop.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for exec := range p.queue {
		observability.SetQueueDepth(len(p.queue))
		if err := p.exec.Execute(ctx, exec); err != nil {
			p.log.WithError(err).WithField("signal_id", exec.SignalID).Error("execution aborted")
		}
	}
}

// TryEnqueue offers an execution to the queue without blocking. Returns
// false when the queue is full.
func (p *Pool) TryEnqueue(exec *domain.TradeExecution) bool {
	select {
	case p.queue <- exec:
		observability.SetQueueDepth(len(p.queue))
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for workers to drain it.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}
