package domain

import "time"

// SignalKind distinguishes the two trade signal variants.
type SignalKind string

const (
	SignalOpen  SignalKind = "OPEN"
	SignalClose SignalKind = "CLOSE"
)

// OperationType is the close reason carried by Close signals.
type OperationType string

const (
	OpStopLoss   OperationType = "SL"
	OpTakeProfit OperationType = "TP"
	OpManual     OperationType = "Manual"
)

// TradeSignal is a structured trade intent extracted from a channel message.
// Corresponds to the signals table. MessageID is source-assigned and unique;
// re-delivery of the same id is an idempotent no-op.
type TradeSignal struct {
	MessageID       int64      // PRIMARY KEY, source-assigned
	Kind            SignalKind // OPEN | CLOSE
	Strategy        string     // strategy identifier from the message
	Token           string     // token symbol
	ContractAddress string     // base58 mint address
	ReceivedAt      time.Time  // message timestamp
	RawText         string     // original message text

	// Open fields
	BuyPrice      float64  // entry price quoted in the message
	MarketCap     float64  // market cap in USD
	NumBuys       int      // buys observed in the signal window
	TotalBuySOL   *float64 // total SOL bought in window (nullable)
	TimeWindowSec int      // signal observation window

	// Close fields
	OpType     OperationType // SL | TP | Manual
	EntryPrice float64
	ExitPrice  float64
	ProfitPct  float64
}

// IsOpen reports whether the signal is an Open variant.
func (s *TradeSignal) IsOpen() bool { return s.Kind == SignalOpen }

// IsClose reports whether the signal is a Close variant.
func (s *TradeSignal) IsClose() bool { return s.Kind == SignalClose }
