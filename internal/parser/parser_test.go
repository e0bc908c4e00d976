package parser

import (
	"math"
	"testing"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
)

// Valid 32-byte base58 addresses for corpus messages.
const (
	mintA = "So11111111111111111111111111111111111111112"
	mintB = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
)

func TestParse_StructuredOpen(t *testing.T) {
	msg := "🟢 Sniper entry → ABYS\n" +
		"└ MC: $48.5k | alphastrat\n" +
		"└ Buy Price: $0.002\n" +
		"└ 5 buys, 12.5 SOL (30s)\n" +
		"└─ CA: " + mintA + "pump"

	sig := Parse(msg)
	if sig == nil {
		t.Fatal("expected Open signal, got nil")
	}
	if sig.Kind != domain.SignalOpen {
		t.Fatalf("Kind = %s, want OPEN", sig.Kind)
	}
	if sig.Token != "ABYS" {
		t.Errorf("Token = %q, want ABYS", sig.Token)
	}
	if sig.Strategy != "alphastrat" {
		t.Errorf("Strategy = %q, want alphastrat", sig.Strategy)
	}
	if sig.BuyPrice != 0.002 {
		t.Errorf("BuyPrice = %v, want 0.002", sig.BuyPrice)
	}
	if sig.MarketCap != 48500 {
		t.Errorf("MarketCap = %v, want 48500", sig.MarketCap)
	}
	if sig.ContractAddress != mintA {
		t.Errorf("ContractAddress = %q, want %q (pump suffix stripped)", sig.ContractAddress, mintA)
	}
	if sig.NumBuys != 5 {
		t.Errorf("NumBuys = %d, want 5", sig.NumBuys)
	}
	if sig.TotalBuySOL == nil || *sig.TotalBuySOL != 12.5 {
		t.Errorf("TotalBuySOL = %v, want 12.5", sig.TotalBuySOL)
	}
	if sig.TimeWindowSec != 30 {
		t.Errorf("TimeWindowSec = %d, want 30", sig.TimeWindowSec)
	}
}

func TestParse_StructuredCloseStopLoss(t *testing.T) {
	msg := "🔴 ABYS SL\n" +
		"alphastrat\n" +
		"└ $0.001122 → $0.000165 (-85.3%)\n" +
		"└─ CA: " + mintA + "pump"

	sig := Parse(msg)
	if sig == nil {
		t.Fatal("expected Close signal, got nil")
	}
	if sig.Kind != domain.SignalClose {
		t.Fatalf("Kind = %s, want CLOSE", sig.Kind)
	}
	if sig.OpType != domain.OpStopLoss {
		t.Errorf("OpType = %s, want SL", sig.OpType)
	}
	if sig.Token != "ABYS" {
		t.Errorf("Token = %q, want ABYS", sig.Token)
	}
	if sig.Strategy != "alphastrat" {
		t.Errorf("Strategy = %q, want alphastrat", sig.Strategy)
	}
	if sig.EntryPrice != 0.001122 {
		t.Errorf("EntryPrice = %v, want 0.001122", sig.EntryPrice)
	}
	if sig.ExitPrice != 0.000165 {
		t.Errorf("ExitPrice = %v, want 0.000165", sig.ExitPrice)
	}
	if sig.ProfitPct != -85.3 {
		t.Errorf("ProfitPct = %v, want -85.3", sig.ProfitPct)
	}
}

func TestParse_StructuredCloseTakeProfit(t *testing.T) {
	msg := "🔴 WIF TP\n" +
		"meteorx\n" +
		"└ $0.000583 → $0.001169 (+100.7%)\n" +
		"└─ CA: " + mintB

	sig := Parse(msg)
	if sig == nil {
		t.Fatal("expected Close signal, got nil")
	}
	if sig.OpType != domain.OpTakeProfit {
		t.Errorf("OpType = %s, want TP", sig.OpType)
	}
	if sig.ProfitPct != 100.7 {
		t.Errorf("ProfitPct = %v, want 100.7", sig.ProfitPct)
	}
	if sig.ContractAddress != mintB {
		t.Errorf("ContractAddress = %q, want %q", sig.ContractAddress, mintB)
	}
}

func TestParse_LooseProseOpen(t *testing.T) {
	sig := Parse("Opened $FOO at 0.002, mcap 1.2M")
	if sig == nil {
		t.Fatal("expected Open signal, got nil")
	}
	if sig.Kind != domain.SignalOpen {
		t.Fatalf("Kind = %s, want OPEN", sig.Kind)
	}
	if sig.Token != "FOO" {
		t.Errorf("Token = %q, want FOO", sig.Token)
	}
	if sig.BuyPrice != 0.002 {
		t.Errorf("BuyPrice = %v, want 0.002", sig.BuyPrice)
	}
	if sig.MarketCap != 1.2e6 {
		t.Errorf("MarketCap = %v, want 1.2e6", sig.MarketCap)
	}
	if sig.ContractAddress != "" {
		t.Errorf("ContractAddress = %q, want empty", sig.ContractAddress)
	}
}

// openCorpus returns Open messages with formatting noise the parser must
// tolerate: thousands separators, currency symbols, varied whitespace,
// k/M suffix casing.
func openCorpus() map[string]struct {
	price float64
	mcap  float64
} {
	return map[string]struct {
		price float64
		mcap  float64
	}{
		"Opened $AAA at 0.5, mcap 300k":     {0.5, 300_000},
		"Opened BBB at $1,250.75, mcap 14M": {1250.75, 14e6},
		"opened $CCC  at  0.0042, mcap 980K": {0.0042, 980_000},
		"Opened $DDD at 3.14, market cap 2.5M": {3.14, 2.5e6},
		"🟢 Sniper entry → EEE\n└ MC: $1.5M | strat1\n└ Buy Price: $0.0099\n└ 3 buys, 4 SOL (15s)\n└─ CA: " + mintA:  {0.0099, 1.5e6},
		"🟢 Volume spike → FFF\n└ MC: $820k | strat2\n└ Buy Price: $1,024.5\n└ 12 buys, 88.25 SOL (60s)\n└─ CA: " + mintB: {1024.5, 820_000},
		"🟢 New pool → GGG\n└ MC: $55 | strat3\n└ Buy Price: $0.33\n└ 2 buys, 1 SOL (5s)\n└─ CA: " + mintA + "pump":       {0.33, 55},
		"Opened $HHH at 0.000001, mcap 42k": {0.000001, 42_000},
		"Opened III at 7, mcap 1B":          {7, 1e9},
		"Opened $JJJ at 19.99, mcap 777k":   {19.99, 777_000},
	}
}

func TestParse_OpenCorpus(t *testing.T) {
	for msg, want := range openCorpus() {
		sig := Parse(msg)
		if sig == nil {
			t.Errorf("Parse(%q) = nil, want Open", msg)
			continue
		}
		if sig.Kind != domain.SignalOpen {
			t.Errorf("Parse(%q).Kind = %s, want OPEN", msg, sig.Kind)
		}
		if sig.BuyPrice != want.price {
			t.Errorf("Parse(%q).BuyPrice = %v, want %v", msg, sig.BuyPrice, want.price)
		}
		if sig.MarketCap != want.mcap {
			t.Errorf("Parse(%q).MarketCap = %v, want %v", msg, sig.MarketCap, want.mcap)
		}
	}
}

func TestParse_CloseCorpus(t *testing.T) {
	cases := map[string]struct {
		op     domain.OperationType
		entry  float64
		exit   float64
		profit float64
	}{
		"🔴 AAA SL\nstrat1\n└ $0.5 → $0.25 (-50%)\n└─ CA: " + mintA:               {domain.OpStopLoss, 0.5, 0.25, -50},
		"🔴 BBB TP\nstrat2\n└ $1,000 → $2,500.5 (+150.05%)\n└─ CA: " + mintB:      {domain.OpTakeProfit, 1000, 2500.5, 150.05},
		"🔴 CCC Manual\nstrat3\n└ $0.002 → $0.002 (+0.0%)\n└─ CA: " + mintA:       {domain.OpManual, 0.002, 0.002, 0},
		"🔴 DDD TP\nstrat4\n└  $0.000583  →  $0.001169  (+100.7%)\n└─ CA: " + mintB: {domain.OpTakeProfit, 0.000583, 0.001169, 100.7},
		"🔴 EEE SL\nstrat5\n└ $3.30 → $1.10 (-66.7%)\n└─ CA: " + mintA + "pump":   {domain.OpStopLoss, 3.3, 1.1, -66.7},
		"🔴 FFF Manual\nlongstrategyname\n└ $11 → $44 (+300%)\n└─ CA: " + mintB:   {domain.OpManual, 11, 44, 300},
	}

	for msg, want := range cases {
		sig := Parse(msg)
		if sig == nil {
			t.Errorf("Parse(%q) = nil, want Close", msg)
			continue
		}
		if sig.Kind != domain.SignalClose {
			t.Errorf("Parse(%q).Kind = %s, want CLOSE", msg, sig.Kind)
			continue
		}
		if sig.OpType != want.op {
			t.Errorf("Parse(%q).OpType = %s, want %s", msg, sig.OpType, want.op)
		}
		if sig.EntryPrice != want.entry {
			t.Errorf("Parse(%q).EntryPrice = %v, want %v", msg, sig.EntryPrice, want.entry)
		}
		if sig.ExitPrice != want.exit {
			t.Errorf("Parse(%q).ExitPrice = %v, want %v", msg, sig.ExitPrice, want.exit)
		}
		if math.Abs(sig.ProfitPct-want.profit) > 1e-9 {
			t.Errorf("Parse(%q).ProfitPct = %v, want %v", msg, sig.ProfitPct, want.profit)
		}
	}
}

func TestParse_ChatterReturnsNil(t *testing.T) {
	chatter := []string{
		"",
		"   ",
		"gm everyone",
		"this token is going to the moon 🚀",
		"what's the mcap on that one?",
		"I opened a support ticket yesterday",          // open anchor, no numeric fields
		"when does the exit poll close?",               // close anchor, no price line
		"just bought some SOL on binance",
		"MC is looking weak today",
		"Buy Price guide: always check slippage first", // label without a price
		"└─ CA: notbase58!!!",
		"🔴 ABYS SL", // header only, no price line
	}

	for _, msg := range chatter {
		if sig := Parse(msg); sig != nil {
			t.Errorf("Parse(%q) = %+v, want nil", msg, sig)
		}
	}
}

func TestParse_AmbiguousBothAnchors(t *testing.T) {
	msg := "Opened $FOO at 0.002, mcap 1.2M — then closed $FOO at 0.004"
	if sig := Parse(msg); sig != nil {
		t.Errorf("ambiguous message parsed as %s, want nil", sig.Kind)
	}
}

func TestParse_RejectsInvalidNumbers(t *testing.T) {
	bad := []string{
		"Opened $FOO at 0, mcap 1.2M",        // zero price
		"Opened $FOO at -3, mcap 1.2M",       // negative price
		"Opened $FOO at 0.002, mcap 0k",      // zero market cap
		"Opened $FOO at abc, mcap 1.2M",      // non-numeric price
		"Opened $FOO at 0.002",               // missing market cap
		"🟢 Entry → BAR\n└ MC: $1M | s\n└ Buy Price: $x\n└─ CA: " + mintA, // bad labeled price
	}
	for _, msg := range bad {
		if sig := Parse(msg); sig != nil {
			t.Errorf("Parse(%q) accepted invalid input: %+v", msg, sig)
		}
	}
}

func TestParse_RejectsInvalidContractAddress(t *testing.T) {
	msg := "🟢 Entry → BAR\n└ MC: $1M | s\n└ Buy Price: $0.5\n└─ CA: tooShort123"
	if sig := Parse(msg); sig != nil {
		t.Errorf("invalid CA accepted: %q", sig.ContractAddress)
	}
}

func TestParse_CloseWithoutOpenFieldsIsRejected(t *testing.T) {
	// Close header present but the price line lacks the exit side.
	msg := "🔴 ABYS TP\nstrat\n└ $0.001 → (boom)\n└─ CA: " + mintA
	if sig := Parse(msg); sig != nil {
		t.Errorf("incomplete close accepted: %+v", sig)
	}
}
