package venue

import (
	"context"
	"encoding/json"
	"errors"

	solanago "github.com/gagliardetto/solana-go"
)

// Venue routing errors. ErrNoRoute means the pair cannot be traded at all,
// which callers treat as permanent.
var ErrNoRoute = errors.New("no route for swap")

// QuoteRequest asks for a price to swap Amount of InputMint into OutputMint.
// Amount is in the input mint's smallest units.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBPS int
}

// Quote is a priced route returned by a venue. The raw payload is carried
// along because swap building echoes it back verbatim.
type Quote struct {
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64

	raw json.RawMessage
}

// Raw returns the venue's original quote payload.
func (q *Quote) Raw() json.RawMessage { return q.raw }

// Venue prices and builds DEX swap transactions. Implementations do not
// sign or submit; that stays with the executor.
type Venue interface {
	Name() string

	// GetQuote prices a swap. Returns ErrNoRoute when the pair has no route.
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)

	// BuildSwap turns a quote into an unsigned transaction for user, with
	// the given compute unit price in micro-lamports baked in.
	BuildSwap(ctx context.Context, q *Quote, user solanago.PublicKey, priorityFee uint64) (*solanago.Transaction, error)
}
