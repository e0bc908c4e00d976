package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Chain errors surfaced to the executor's retry classifier.
var (
	// ErrTxFailed means the transaction landed on chain and failed.
	ErrTxFailed = errors.New("transaction failed on chain")
	// ErrConfirmTimeout means the transaction was not seen before the
	// confirmation window closed. Its fate is unknown.
	ErrConfirmTimeout = errors.New("confirmation timed out")
)

// TxStatus is the observed state of a submitted signature.
type TxStatus int

const (
	StatusUnknown TxStatus = iota // signature not found
	StatusPending                 // processed but below confirmed commitment
	StatusConfirmed
	StatusFailed
)

// Chain submits transactions and reports their fate.
type Chain interface {
	// Submit broadcasts a signed transaction and returns its signature.
	Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)

	// WaitForConfirmation blocks until the signature reaches confirmed
	// commitment, fails, or ctx expires. Returns ErrTxFailed or
	// ErrConfirmTimeout accordingly.
	WaitForConfirmation(ctx context.Context, sig solanago.Signature) error

	// SignatureStatus reports the current state of a signature; used to
	// resolve executions whose fate was unknown at shutdown.
	SignatureStatus(ctx context.Context, sig solanago.Signature) (TxStatus, error)
}

const defaultConfirmPoll = 2 * time.Second

// Client implements Chain over JSON-RPC with WebSocket-assisted confirmation.
type Client struct {
	rpc         *rpc.Client
	wsEndpoint  string // empty disables the WS path
	confirmPoll time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithWSEndpoint enables signatureSubscribe confirmation over WebSocket.
func WithWSEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.wsEndpoint = endpoint
	}
}

// WithConfirmPollInterval sets the polling cadence for the fallback path.
func WithConfirmPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.confirmPoll = d
	}
}

// NewClient creates a Chain client for the given RPC endpoint.
func NewClient(rpcEndpoint string, opts ...ClientOption) *Client {
	c := &Client{
		rpc:         rpc.New(rpcEndpoint),
		confirmPoll: defaultConfirmPoll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Chain = (*Client)(nil)

// Submit broadcasts a signed transaction.
func (c *Client) Submit(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// WaitForConfirmation watches a signature until it is confirmed or fails.
// The WS path resolves most signatures in one round trip; polling covers
// WS endpoints that drop the subscription.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solanago.Signature) error {
	if c.wsEndpoint != "" {
		status, err := confirmSignatureWS(ctx, c.wsEndpoint, sig)
		if err == nil {
			return statusToErr(status)
		}
		if ctx.Err() != nil {
			return ErrConfirmTimeout
		}
		// fall through to polling
	}
	return c.pollForConfirmation(ctx, sig)
}

func (c *Client) pollForConfirmation(ctx context.Context, sig solanago.Signature) error {
	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ErrConfirmTimeout
		case <-ticker.C:
			status, err := c.SignatureStatus(ctx, sig)
			if err != nil {
				if ctx.Err() != nil {
					return ErrConfirmTimeout
				}
				continue
			}
			switch status {
			case StatusConfirmed:
				return nil
			case StatusFailed:
				return ErrTxFailed
			}
		}
	}
}

// SignatureStatus queries the current state of a signature.
func (c *Client) SignatureStatus(ctx context.Context, sig solanago.Signature) (TxStatus, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return StatusUnknown, fmt.Errorf("get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return StatusUnknown, nil
	}

	st := out.Value[0]
	if st.Err != nil {
		return StatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return StatusConfirmed, nil
	}
	return StatusPending, nil
}

func statusToErr(status TxStatus) error {
	switch status {
	case StatusConfirmed:
		return nil
	case StatusFailed:
		return ErrTxFailed
	}
	return ErrConfirmTimeout
}
