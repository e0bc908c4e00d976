package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

const wsHandshakeTimeout = 10 * time.Second

// wsRequest is a JSON-RPC 2.0 request over WebSocket.
type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// wsMessage covers both the subscription ack and notifications.
type wsMessage struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Error  *wsError        `json:"error,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsError) Error() string {
	return fmt.Sprintf("ws error %d: %s", e.Code, e.Message)
}

// signatureNotification is the params payload of signatureNotification.
type signatureNotification struct {
	Result struct {
		Value struct {
			Err any `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

// confirmSignatureWS opens a one-shot signatureSubscribe for sig and waits
// for its notification. The node fires exactly once at the requested
// commitment and tears the subscription down itself.
func confirmSignatureWS(ctx context.Context, endpoint string, sig solanago.Signature) (TxStatus, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return StatusUnknown, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx expires.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []any{
			sig.String(),
			map[string]string{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return StatusUnknown, fmt.Errorf("send signatureSubscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return StatusUnknown, fmt.Errorf("read websocket message: %w", err)
		}

		if msg.Error != nil {
			return StatusUnknown, fmt.Errorf("signatureSubscribe rejected: %w", msg.Error)
		}
		if msg.Method != "signatureNotification" {
			continue
		}

		var note signatureNotification
		if err := json.Unmarshal(msg.Params, &note); err != nil {
			return StatusUnknown, fmt.Errorf("unmarshal signature notification: %w", err)
		}
		if note.Result.Value.Err != nil {
			return StatusFailed, nil
		}
		return StatusConfirmed, nil
	}
}
