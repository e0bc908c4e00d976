package domain

import "time"

// ExecutionStatus is the lifecycle state of a trade execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionSubmitted ExecutionStatus = "SUBMITTED"
	ExecutionConfirmed ExecutionStatus = "CONFIRMED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionAbandoned ExecutionStatus = "ABANDONED"
)

// Terminal reports whether the status allows no further attempts.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionConfirmed, ExecutionFailed, ExecutionAbandoned:
		return true
	}
	return false
}

// TradeDirection is the economic direction of an execution.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

// Attempt outcome codes. SUBMITTED marks an attempt that is on the wire
// awaiting confirmation; every other code is final for its attempt.
const (
	AttemptOutcomeSubmitted = "SUBMITTED"
	AttemptOutcomeConfirmed = "CONFIRMED"
	AttemptOutcomeTransient = "TRANSIENT"
	AttemptOutcomePermanent = "PERMANENT"
	AttemptOutcomeAdmission = "ADMISSION_REJECTED"
)

// Attempt records one on-chain submission try.
type Attempt struct {
	Seq         int       `json:"seq"`
	PriorityFee uint64    `json:"priority_fee"` // micro-lamports per compute unit
	Signature   string    `json:"signature,omitempty"`
	Outcome     string    `json:"outcome"`
	Err         string    `json:"err,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TradeExecution is the system's attempt to realize a signal on chain.
// Corresponds to the executions table; keyed by the owning signal.
type TradeExecution struct {
	SignalID        int64           // UNIQUE, references signals.message_id
	Strategy        string          // copied from signal for (strategy, token) lookups
	Token           string
	ContractAddress string
	Direction       TradeDirection
	Status          ExecutionStatus
	Attempts        []Attempt // ordered, append-only
	FinalSignature  *string   // set once Confirmed
	PositionSize    float64   // SOL for buys, raw token units for sells
	FilledAmount    uint64    // output units of the confirming swap quote
	SlippageBPS     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LastSignature returns the signature of the most recent attempt that was
// actually submitted, or empty when nothing reached the network.
func (e *TradeExecution) LastSignature() string {
	for i := len(e.Attempts) - 1; i >= 0; i-- {
		if e.Attempts[i].Signature != "" {
			return e.Attempts[i].Signature
		}
	}
	return ""
}
