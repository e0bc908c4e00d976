package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	chain "github.com/dandagow3t/copy-trade-telegram/internal/solana"
	"github.com/dandagow3t/copy-trade-telegram/internal/venue"
)

// errNonRetryable marks failures that are deterministic for this execution;
// retrying with a higher fee cannot change them.
var errNonRetryable = errors.New("non-retryable")

func nonRetryable(err error) error {
	return fmt.Errorf("%w: %w", errNonRetryable, err)
}

// rpcPermanentPatterns are node error fragments where the transaction is
// rejected for reasons a retry cannot fix.
var rpcPermanentPatterns = []string{
	"insufficient funds",
	"insufficient lamports",
	"custom program error",
	"invalid account data",
	"account not found",
}

// isPermanent decides whether an attempt error ends the execution. Anything
// not provably deterministic is treated as transient so the fee escalation
// loop gets its chance.
func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errNonRetryable) || errors.Is(err, venue.ErrNoRoute) || errors.Is(err, chain.ErrTxFailed) {
		return true
	}
	if errors.Is(err, chain.ErrConfirmTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range rpcPermanentPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
