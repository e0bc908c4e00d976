package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL.
// Attempts are stored as a JSONB array on the execution row; the attempt
// history is small and always read together with its execution.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

const executionColumns = `
	signal_id, strategy, token, contract_address, direction, status, attempts,
	final_signature, position_size, filled_amount, slippage_bps, created_at, updated_at
`

// Upsert inserts or fully replaces the execution for its signal.
func (s *ExecutionStore) Upsert(ctx context.Context, exec *domain.TradeExecution) error {
	if exec == nil || exec.SignalID == 0 {
		return storage.ErrInvalidInput
	}

	attempts, err := json.Marshal(exec.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (signal_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			final_signature = EXCLUDED.final_signature,
			filled_amount = EXCLUDED.filled_amount,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		exec.SignalID,
		exec.Strategy,
		exec.Token,
		exec.ContractAddress,
		string(exec.Direction),
		string(exec.Status),
		attempts,
		exec.FinalSignature,
		exec.PositionSize,
		int64(exec.FilledAmount),
		exec.SlippageBPS,
		exec.CreatedAt,
		exec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

// GetBySignal retrieves the execution owned by a signal.
func (s *ExecutionStore) GetBySignal(ctx context.Context, signalID int64) (*domain.TradeExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE signal_id = $1`

	row := s.pool.QueryRow(ctx, query, signalID)
	exec, err := scanExecution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

// FindNonTerminal returns the outstanding execution for (strategy, token).
func (s *ExecutionStore) FindNonTerminal(ctx context.Context, strategy, token string) (*domain.TradeExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE strategy = $1 AND token = $2 AND status IN ($3, $4)
		ORDER BY signal_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, strategy, token,
		string(domain.ExecutionPending), string(domain.ExecutionSubmitted))
	exec, err := scanExecution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find non-terminal execution: %w", err)
	}
	return exec, nil
}

// FindConfirmedBuy returns the most recent confirmed buy for (strategy, token).
func (s *ExecutionStore) FindConfirmedBuy(ctx context.Context, strategy, token string) (*domain.TradeExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE strategy = $1 AND token = $2 AND direction = $3 AND status = $4
		ORDER BY signal_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, strategy, token,
		string(domain.DirectionBuy), string(domain.ExecutionConfirmed))
	exec, err := scanExecution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find confirmed buy: %w", err)
	}
	return exec, nil
}

// ListNonTerminal returns every Pending or Submitted execution, oldest first.
func (s *ExecutionStore) ListNonTerminal(ctx context.Context) ([]*domain.TradeExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC, signal_id ASC
	`

	rows, err := s.pool.Query(ctx, query,
		string(domain.ExecutionPending), string(domain.ExecutionSubmitted))
	if err != nil {
		return nil, fmt.Errorf("list non-terminal executions: %w", err)
	}
	defer rows.Close()

	var execs []*domain.TradeExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return execs, nil
}

// scanExecution scans a single row into a TradeExecution.
func scanExecution(row pgx.Row) (*domain.TradeExecution, error) {
	var exec domain.TradeExecution
	var directionStr, statusStr string
	var attempts []byte
	var filled int64

	err := row.Scan(
		&exec.SignalID,
		&exec.Strategy,
		&exec.Token,
		&exec.ContractAddress,
		&directionStr,
		&statusStr,
		&attempts,
		&exec.FinalSignature,
		&exec.PositionSize,
		&filled,
		&exec.SlippageBPS,
		&exec.CreatedAt,
		&exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	exec.FilledAmount = uint64(filled)

	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &exec.Attempts); err != nil {
			return nil, fmt.Errorf("unmarshal attempts: %w", err)
		}
	}

	exec.Direction = domain.TradeDirection(directionStr)
	exec.Status = domain.ExecutionStatus(statusStr)
	return &exec, nil
}
