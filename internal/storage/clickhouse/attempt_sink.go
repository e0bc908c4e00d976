package clickhouse

import (
	"context"
	"fmt"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// AttemptSink implements storage.AttemptAuditSink using ClickHouse.
// Every submission attempt is appended to execution_attempts for offline
// analysis of fee escalation and venue behavior. The sink is write-only on
// the hot path.
type AttemptSink struct {
	conn *Conn
}

// NewAttemptSink creates a new AttemptSink.
func NewAttemptSink(conn *Conn) *AttemptSink {
	return &AttemptSink{conn: conn}
}

// Compile-time interface check.
var _ storage.AttemptAuditSink = (*AttemptSink)(nil)

// RecordAttempt appends one attempt row.
func (s *AttemptSink) RecordAttempt(ctx context.Context, exec *domain.TradeExecution, a domain.Attempt) error {
	if exec == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO execution_attempts (
			signal_id, strategy, token, contract_address, direction,
			attempt_seq, priority_fee, signature, outcome, error, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		uint64(exec.SignalID),
		exec.Strategy,
		exec.Token,
		exec.ContractAddress,
		string(exec.Direction),
		uint32(a.Seq),
		a.PriorityFee,
		a.Signature,
		a.Outcome,
		a.Err,
		a.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution attempt: %w", err)
	}
	return nil
}

// CountBySignal returns how many attempts are recorded for a signal.
func (s *AttemptSink) CountBySignal(ctx context.Context, signalID int64) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM execution_attempts WHERE signal_id = ?`,
		uint64(signalID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count execution attempts: %w", err)
	}
	return count, nil
}
