// Package parser classifies raw channel text into structured trade signals.
// Parsing is pure and heuristic: anything that does not look like a signal
// yields nil, never an error.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
)

// Messages come in two shapes: the structured channel format
//
//	🟢 Sniper entry → FOO
//	└ MC: $48.5k | alphastrat
//	└ Buy Price: $0.002
//	└ 5 buys, 12.5 SOL (30s)
//	└─ CA: <mint>pump
//
//	🔴 FOO SL
//	alphastrat
//	└ $0.002 → $0.0003 (-85.0%)
//	└─ CA: <mint>pump
//
// and loose prose ("Opened $FOO at 0.002, mcap 1.2M"). Both are handled by
// anchoring on keywords and labeled numeric fields rather than a fixed grammar.

var (
	reOpenedToken = regexp.MustCompile(`(?i)\bopened\s+\$?([A-Za-z0-9_]+)`)
	reClosedToken = regexp.MustCompile(`(?i)\b(?:closed|exit(?:ed)?)\s+\$?([A-Za-z0-9_]+)`)
	reAtPrice     = regexp.MustCompile(`(?i)\bat\s+\$?([0-9][0-9,._]*)`)
	reMcapInline  = regexp.MustCompile(`(?i)\b(?:mcap|market\s*cap)[:\s]+\$?([0-9][0-9,._]*)\s*([kKmMbB]?)`)
	reProfitPct   = regexp.MustCompile(`\(?\s*([+-]?[0-9][0-9,._]*)\s*%\s*\)?`)
	reNumber      = regexp.MustCompile(`[0-9][0-9,._]*`)
)

// Parse classifies raw message text. It returns nil for chatter, for
// messages missing required fields, and for messages that match both the
// Open and Close anchors (ambiguous input is never guessed at).
// The caller owns MessageID and ReceivedAt.
func Parse(raw string) *domain.TradeSignal {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	openHit := hasOpenAnchor(raw)
	closeHit := hasCloseAnchor(raw)
	if openHit == closeHit {
		// Neither variant, or ambiguous.
		return nil
	}

	if openHit {
		return parseOpen(raw)
	}
	return parseClose(raw)
}

// hasOpenAnchor reports whether the text carries an Open keyword anchor.
func hasOpenAnchor(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "opened") || strings.Contains(lower, "buy price")
}

// hasCloseAnchor reports whether the text carries a Close keyword anchor.
func hasCloseAnchor(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "closed") || strings.Contains(lower, "exit") {
		return true
	}
	_, _, ok := closeHeader(raw)
	return ok
}

// closeHeader extracts (token, op type) from a structured close first line
// of the form "<emoji> TOKEN SL|TP|Manual".
func closeHeader(raw string) (string, domain.OperationType, bool) {
	first := firstLine(raw)
	fields := strings.Fields(first)
	if len(fields) < 3 {
		return "", "", false
	}
	op, ok := opTypeFromString(fields[len(fields)-1])
	if !ok {
		return "", "", false
	}
	return fields[len(fields)-2], op, true
}

func opTypeFromString(s string) (domain.OperationType, bool) {
	switch s {
	case "SL":
		return domain.OpStopLoss, true
	case "TP":
		return domain.OpTakeProfit, true
	case "Manual":
		return domain.OpManual, true
	}
	return "", false
}

func parseOpen(raw string) *domain.TradeSignal {
	lines := splitLines(raw)

	token := openToken(raw)
	if token == "" {
		return nil
	}

	buyPrice, ok := openBuyPrice(raw, lines)
	if !ok {
		return nil
	}

	marketCap, ok := openMarketCap(raw, lines)
	if !ok {
		return nil
	}

	contract, ok := contractAddress(lines)
	if !ok {
		// A CA line was present but did not hold a valid address.
		return nil
	}

	sig := &domain.TradeSignal{
		Kind:            domain.SignalOpen,
		Strategy:        extractStrategy(lines),
		Token:           token,
		ContractAddress: contract,
		RawText:         raw,
		BuyPrice:        buyPrice,
		MarketCap:       marketCap,
	}

	// Auxiliary metrics from the buys line; all optional.
	if line := findLine(lines, "buys", "buyers"); line != "" {
		if n, ok := firstInt(line); ok {
			sig.NumBuys = n
		}
		if parts := strings.SplitN(line, ",", 2); len(parts) == 2 {
			if v, ok := firstFloat(parts[1]); ok {
				sig.TotalBuySOL = &v
			}
		}
		if i := strings.IndexByte(line, '('); i >= 0 {
			if w, ok := firstInt(line[i:]); ok {
				sig.TimeWindowSec = w
			}
		}
	}

	return sig
}

func parseClose(raw string) *domain.TradeSignal {
	lines := splitLines(raw)

	token, op, ok := closeHeader(raw)
	if !ok {
		op = domain.OpManual
		if m := reClosedToken.FindStringSubmatch(raw); m != nil {
			token = m[1]
		}
	}
	if token == "" {
		return nil
	}

	// The price line reads "$entry → $exit (±pct%)".
	priceLine := findLine(lines, "→")
	if priceLine == "" {
		return nil
	}
	parts := strings.SplitN(priceLine, "→", 2)
	if len(parts) != 2 {
		return nil
	}

	entry, ok := parsePrice(parts[0])
	if !ok {
		return nil
	}
	exit, ok := parsePrice(parts[1])
	if !ok {
		return nil
	}

	m := reProfitPct.FindStringSubmatch(parts[1])
	if m == nil {
		return nil
	}
	profit, err := strconv.ParseFloat(cleanNumber(m[1]), 64)
	if err != nil || math.IsInf(profit, 0) || math.IsNaN(profit) {
		return nil
	}

	contract, ok := contractAddress(lines)
	if !ok {
		return nil
	}

	return &domain.TradeSignal{
		Kind:            domain.SignalClose,
		Strategy:        extractStrategy(lines),
		Token:           token,
		ContractAddress: contract,
		RawText:         raw,
		OpType:          op,
		EntryPrice:      entry,
		ExitPrice:       exit,
		ProfitPct:       profit,
	}
}

// openToken finds the token symbol for an Open message: the word after
// "opened", or the tail of a "… → TOKEN" first line.
func openToken(raw string) string {
	if m := reOpenedToken.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	first := firstLine(raw)
	if i := strings.Index(first, "→"); i >= 0 {
		fields := strings.Fields(first[i+len("→"):])
		if len(fields) > 0 {
			return strings.TrimPrefix(fields[0], "$")
		}
	}
	return ""
}

// openBuyPrice reads the labeled "Buy Price:" field, falling back to the
// prose form "at <price>".
func openBuyPrice(raw string, lines []string) (float64, bool) {
	if line := findLine(lines, "Buy Price:"); line != "" {
		parts := strings.SplitN(line, "Buy Price:", 2)
		return parsePrice(parts[1])
	}
	if m := reAtPrice.FindStringSubmatch(raw); m != nil {
		return positiveFloat(m[1])
	}
	return 0, false
}

// openMarketCap reads the "MC:" line of the structured format (with k/M
// suffix), falling back to an inline "mcap"/"market cap" label.
func openMarketCap(raw string, lines []string) (float64, bool) {
	if line := findLine(lines, "MC:"); line != "" {
		field := strings.SplitN(line, "|", 2)[0]
		field = strings.SplitN(field, "MC:", 2)[1]
		return parseSuffixedAmount(field)
	}
	if m := reMcapInline.FindStringSubmatch(raw); m != nil {
		return parseSuffixedAmount(m[1] + m[2])
	}
	return 0, false
}

// extractStrategy follows the channel layout: open messages carry the
// strategy after '|' on the MC line, close messages on a bare second line.
// Loose prose has no strategy and yields "".
func extractStrategy(lines []string) string {
	if line := findLine(lines, "MC:"); line != "" {
		if parts := strings.SplitN(line, "|", 2); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	if len(lines) > 1 {
		second := strings.TrimSpace(lines[1])
		if second != "" && !strings.ContainsAny(second, "|$") && !strings.Contains(second, "→") {
			return second
		}
	}
	return ""
}

// contractAddress extracts and validates the "CA:" line. Returns ok=true
// with an empty address when no CA line exists (loose prose signals), and
// ok=false when a CA line is present but invalid.
func contractAddress(lines []string) (string, bool) {
	line := findLine(lines, "CA:")
	if line == "" {
		return "", true
	}
	parts := strings.SplitN(line, "CA:", 2)
	addr := strings.TrimSpace(parts[1])
	// Channel messages append the launchpad suffix to the mint.
	addr = strings.TrimSpace(strings.TrimSuffix(addr, "pump"))

	decoded, err := base58.Decode(addr)
	if err != nil || len(decoded) != 32 {
		return "", false
	}
	return addr, true
}

// parsePrice extracts the first dollar-anchored amount from text. The value
// must be a finite positive number.
func parsePrice(text string) (float64, bool) {
	i := strings.IndexByte(text, '$')
	if i < 0 {
		return 0, false
	}
	m := reNumber.FindString(text[i+1:])
	if m == "" {
		return 0, false
	}
	return positiveFloat(m)
}

// parseSuffixedAmount parses an amount with an optional k/M/B scale suffix,
// tolerating a leading currency symbol.
func parseSuffixedAmount(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "$")

	scale := 1.0
	switch {
	case strings.HasSuffix(text, "k"), strings.HasSuffix(text, "K"):
		scale = 1_000
		text = text[:len(text)-1]
	case strings.HasSuffix(text, "M"), strings.HasSuffix(text, "m"):
		scale = 1_000_000
		text = text[:len(text)-1]
	case strings.HasSuffix(text, "B"), strings.HasSuffix(text, "b"):
		scale = 1_000_000_000
		text = text[:len(text)-1]
	}

	v, ok := positiveFloat(text)
	if !ok {
		return 0, false
	}
	return v * scale, true
}

// positiveFloat parses a numeric string after stripping separators and
// rejects non-finite or non-positive values.
func positiveFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(cleanNumber(s), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

// cleanNumber drops thousands separators and underscores, keeping at most
// one decimal point.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	// "1.234.567" style separators: keep only the last dot.
	if strings.Count(s, ".") > 1 {
		i := strings.LastIndexByte(s, '.')
		s = strings.ReplaceAll(s[:i], ".", "") + s[i:]
	}
	return s
}

func firstLine(raw string) string {
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}

// findLine returns the first line containing any of the given substrings.
func findLine(lines []string, substrs ...string) string {
	for _, line := range lines {
		for _, sub := range substrs {
			if strings.Contains(line, sub) {
				return line
			}
		}
	}
	return ""
}

// firstInt returns the first integer token in text.
func firstInt(text string) (int, bool) {
	m := reNumber.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleanNumber(m))
	if err != nil {
		return 0, false
	}
	return n, true
}

// firstFloat returns the first positive float token in text.
func firstFloat(text string) (float64, bool) {
	m := reNumber.FindString(text)
	if m == "" {
		return 0, false
	}
	return positiveFloat(m)
}
