// Package ingestion polls the signal channel, parses messages, and feeds
// recorded signals to the decision engine.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dandagow3t/copy-trade-telegram/internal/decision"
	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/observability"
	"github.com/dandagow3t/copy-trade-telegram/internal/parser"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
	"github.com/dandagow3t/copy-trade-telegram/internal/telegram"
)

// Poller fetches channel messages newer than sinceID.
type Poller interface {
	Poll(ctx context.Context, channel string, sinceID int64) ([]telegram.Message, error)
}

// SignalHandler decides what to do with a newly recorded signal.
type SignalHandler interface {
	HandleSignal(ctx context.Context, sig *domain.TradeSignal) (decision.Outcome, error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Poller    Poller
	Signals   storage.SignalStore
	Decisions SignalHandler
	Channel   string
	PollEvery time.Duration
	Logger    logrus.FieldLogger
}

// Runner drives the poll → parse → record → decide loop. The persisted
// highest message id is the catch-up cursor: after a restart the first poll
// asks for everything newer than what the store already holds, so downtime
// loses nothing the source still retains.
type Runner struct {
	poller    Poller
	signals   storage.SignalStore
	decisions SignalHandler
	channel   string
	pollEvery time.Duration
	log       logrus.FieldLogger

	cursor int64
}

// NewRunner creates an ingestion runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Poller == nil {
		return nil, fmt.Errorf("ingestion: Poller is required")
	}
	if opts.Signals == nil {
		return nil, fmt.Errorf("ingestion: Signals is required")
	}
	if opts.Decisions == nil {
		return nil, fmt.Errorf("ingestion: Decisions is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("ingestion: Channel is required")
	}
	pollEvery := opts.PollEvery
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		poller:    opts.Poller,
		signals:   opts.Signals,
		decisions: opts.Decisions,
		channel:   opts.Channel,
		pollEvery: pollEvery,
		log:       log,
	}, nil
}

// Run blocks until the context is cancelled. It polls immediately on start
// so the catch-up sweep begins without waiting a full tick.
func (r *Runner) Run(ctx context.Context) error {
	cursor, err := r.signals.LastMessageID(ctx)
	if err != nil {
		return fmt.Errorf("load catch-up cursor: %w", err)
	}
	r.cursor = cursor
	r.log.WithFields(logrus.Fields{
		"channel":    r.channel,
		"since":      cursor,
		"poll_every": r.pollEvery,
	}).Info("ingestion runner started")

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("ingestion runner stopping")
			return ctx.Err()
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// pollOnce fetches and processes one batch. Poll errors are logged and
// retried on the next tick; the cursor only moves past messages that were
// actually handled.
func (r *Runner) pollOnce(ctx context.Context) {
	msgs, err := r.poller.Poll(ctx, r.channel, r.cursor)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			observability.RecordPollError()
			r.log.WithError(err).Warn("poll failed")
		}
		return
	}
	observability.RecordMessagesPolled(len(msgs))

	for _, msg := range msgs {
		if err := r.handleMessage(ctx, msg); err != nil {
			// Leave the cursor so the message is re-fetched next tick;
			// Record's idempotency makes the retry safe.
			r.log.WithError(err).WithField("message_id", msg.ID).Error("signal handling failed")
			return
		}
		if msg.ID > r.cursor {
			r.cursor = msg.ID
		}
	}
}

func (r *Runner) handleMessage(ctx context.Context, msg telegram.Message) error {
	sig := parser.Parse(msg.Text)
	if sig == nil {
		r.log.WithField("message_id", msg.ID).Debug("message is not a signal")
		return nil
	}
	sig.MessageID = msg.ID
	sig.ReceivedAt = msg.Date.UTC()
	sig.RawText = msg.Text
	observability.RecordSignalParsed(string(sig.Kind))

	result, err := r.signals.Record(ctx, sig)
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	if result == storage.AlreadyPresent {
		// A redelivered signal still goes to the decision engine: the
		// held-back cursor re-fetches messages whose decision failed, and
		// the engine's own duplicate guard drops the ones already decided.
		observability.RecordSignalDuplicate()
		r.log.WithField("message_id", msg.ID).Debug("signal already recorded")
	} else {
		observability.RecordSignalRecorded(sig.ReceivedAt.Unix())
	}

	outcome, err := r.decisions.HandleSignal(ctx, sig)
	if err != nil {
		return fmt.Errorf("decide signal: %w", err)
	}
	observability.RecordDecision(string(outcome))
	r.log.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"kind":       sig.Kind,
		"strategy":   sig.Strategy,
		"token":      sig.Token,
		"outcome":    outcome,
	}).Info("signal processed")
	return nil
}
