package venue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// DefaultJupiterBaseURL is the public Jupiter aggregator endpoint.
const DefaultJupiterBaseURL = "https://quote-api.jup.ag"

const defaultJupiterTimeout = 10 * time.Second

// Jupiter implements Venue against the Jupiter v6 aggregator API.
type Jupiter struct {
	baseURL    string
	httpClient *http.Client
}

// JupiterOption configures Jupiter.
type JupiterOption func(*Jupiter)

// WithBaseURL overrides the aggregator endpoint.
func WithBaseURL(u string) JupiterOption {
	return func(j *Jupiter) {
		j.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) JupiterOption {
	return func(j *Jupiter) {
		j.httpClient = client
	}
}

// NewJupiter creates a Jupiter venue client.
func NewJupiter(opts ...JupiterOption) *Jupiter {
	j := &Jupiter{
		baseURL:    DefaultJupiterBaseURL,
		httpClient: &http.Client{Timeout: defaultJupiterTimeout},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Compile-time interface check.
var _ Venue = (*Jupiter)(nil)

// Name identifies the venue in logs and audit rows.
func (j *Jupiter) Name() string { return "jupiter" }

// quoteResponse carries the fields we read; the full body is kept raw.
type quoteResponse struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// GetQuote prices a swap through GET /v6/quote.
func (j *Jupiter) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBPS))

	endpoint := j.baseURL + "/v6/quote?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}

	resp, err := j.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send quote request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && strings.Contains(apiErr.ErrorCode, "COULD_NOT_FIND_ANY_ROUTE") {
			return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, req.InputMint, req.OutputMint)
		}
		return nil, fmt.Errorf("jupiter quote status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal quote response: %w", err)
	}

	inAmount, err := strconv.ParseUint(parsed.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", parsed.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(parsed.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", parsed.OutAmount, err)
	}
	priceImpact, _ := strconv.ParseFloat(parsed.PriceImpactPct, 64)

	return &Quote{
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: priceImpact,
		raw:            json.RawMessage(body),
	}, nil
}

// swapRequest is the POST /v6/swap payload.
type swapRequest struct {
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports"`
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"` // base64, unsigned
}

// BuildSwap asks Jupiter for a ready-to-sign transaction.
func (j *Jupiter) BuildSwap(ctx context.Context, q *Quote, user solanago.PublicKey, priorityFee uint64) (*solanago.Transaction, error) {
	payload, err := json.Marshal(swapRequest{
		UserPublicKey:                 user.String(),
		WrapAndUnwrapSol:              true,
		ComputeUnitPriceMicroLamports: priorityFee,
		QuoteResponse:                 q.raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/v6/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter swap status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed swapResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal swap response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}

	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("deserialize swap transaction: %w", err)
	}
	return tx, nil
}
