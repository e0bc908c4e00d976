package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	message_id, kind, strategy, token, contract_address, received_at, raw_text,
	buy_price, market_cap, num_buys, total_buy_sol, time_window_sec,
	op_type, entry_price, exit_price, profit_pct
`

// Record inserts a signal keyed by message_id. Redelivered ids report
// AlreadyPresent and leave the stored row untouched.
func (s *SignalStore) Record(ctx context.Context, sig *domain.TradeSignal) (storage.RecordResult, error) {
	if sig == nil || sig.MessageID == 0 {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (message_id) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		sig.MessageID,
		string(sig.Kind),
		sig.Strategy,
		sig.Token,
		sig.ContractAddress,
		sig.ReceivedAt,
		sig.RawText,
		sig.BuyPrice,
		sig.MarketCap,
		sig.NumBuys,
		sig.TotalBuySOL,
		sig.TimeWindowSec,
		string(sig.OpType),
		sig.EntryPrice,
		sig.ExitPrice,
		sig.ProfitPct,
	)
	if err != nil {
		return 0, fmt.Errorf("record signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.AlreadyPresent, nil
	}
	return storage.Inserted, nil
}

// Get retrieves a signal by message id. Returns ErrNotFound if not exists.
func (s *SignalStore) Get(ctx context.Context, messageID int64) (*domain.TradeSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE message_id = $1`

	row := s.pool.QueryRow(ctx, query, messageID)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal: %w", err)
	}
	return sig, nil
}

// FindOpen returns the latest Open signal for (strategy, token) that is not
// followed by a Close for the same pair.
func (s *SignalStore) FindOpen(ctx context.Context, strategy, token string) (*domain.TradeSignal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE strategy = $1 AND token = $2 AND kind = $3
		  AND message_id > COALESCE((
			SELECT MAX(message_id) FROM signals
			WHERE strategy = $1 AND token = $2 AND kind = $4
		  ), 0)
		ORDER BY message_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, strategy, token, string(domain.SignalOpen), string(domain.SignalClose))
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find open signal: %w", err)
	}
	return sig, nil
}

// LastMessageID returns the highest stored message id, or 0 when empty.
func (s *SignalStore) LastMessageID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(message_id), 0) FROM signals`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("last message id: %w", err)
	}
	return id, nil
}

// scanSignal scans a single row into a TradeSignal.
func scanSignal(row pgx.Row) (*domain.TradeSignal, error) {
	var sig domain.TradeSignal
	var kindStr, opTypeStr string

	err := row.Scan(
		&sig.MessageID,
		&kindStr,
		&sig.Strategy,
		&sig.Token,
		&sig.ContractAddress,
		&sig.ReceivedAt,
		&sig.RawText,
		&sig.BuyPrice,
		&sig.MarketCap,
		&sig.NumBuys,
		&sig.TotalBuySOL,
		&sig.TimeWindowSec,
		&opTypeStr,
		&sig.EntryPrice,
		&sig.ExitPrice,
		&sig.ProfitPct,
	)
	if err != nil {
		return nil, err
	}

	sig.Kind = domain.SignalKind(kindStr)
	sig.OpType = domain.OperationType(opTypeStr)
	return &sig, nil
}
