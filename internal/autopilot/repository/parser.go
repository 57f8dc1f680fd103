package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/utils"
)

// ParseAdvisoryText extracts the advisory JSON object from free-form model
// output. It never fails: a response that cannot be parsed, even after
// truncation repair, yields an empty result plus warnings.
func ParseAdvisoryText(raw string) (*dto.AdvisoryResult, []string) {
	var warnings []string

	block := extractJSONBlock(raw)
	if block == "" {
		return &dto.AdvisoryResult{}, append(warnings, "advisory response contained no JSON object")
	}

	var result dto.AdvisoryResult
	if err := json.Unmarshal([]byte(block), &result); err == nil {
		normalizeAdvisoryResult(&result)
		return &result, warnings
	}

	repaired, ok := repairJSONPayload(block)
	if !ok {
		return &dto.AdvisoryResult{}, append(warnings, "advisory response could not be parsed or repaired")
	}

	result = dto.AdvisoryResult{}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return &dto.AdvisoryResult{}, append(warnings, fmt.Sprintf("advisory response unparsable after repair: %v", err))
	}
	normalizeAdvisoryResult(&result)
	return &result, append(warnings, "advisory response JSON was truncated and repaired")
}

// extractJSONBlock strips code fences and cuts the substring from the first
// opening brace to the last closing one. A payload with no closing brace is
// returned from the first brace on so the repair pass can finish it.
func extractJSONBlock(raw string) string {
	s := raw
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if end := strings.Index(rest, "```"); end != -1 {
			s = rest[:end]
		} else {
			s = rest
		}
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	if end := strings.LastIndex(s, "}"); end > start {
		return s[start : end+1]
	}
	return s[start:]
}

// repairJSONPayload attempts bracket-balance repair on a truncated payload:
// count unclosed braces/brackets outside string literals, strip a dangling
// key or separator from the tail, then append the missing closers. An EOF
// inside a string literal is unrepairable.
func repairJSONPayload(s string) (string, bool) {
	inString := false
	escaped := false
	var stack []byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		return "", false
	}
	if len(stack) == 0 {
		// Brackets balance; the parse failure is something repair cannot fix.
		return "", false
	}

	var b strings.Builder
	b.WriteString(stripIncompleteTail(s))
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

// stripIncompleteTail drops a trailing separator and, for a dangling
// "key": fragment, the key itself, so appended closers produce valid JSON.
func stripIncompleteTail(s string) string {
	s = strings.TrimRight(s, " \t\r\n")

	if strings.HasSuffix(s, ":") {
		s = strings.TrimRight(s[:len(s)-1], " \t\r\n")
		if strings.HasSuffix(s, `"`) {
			i := len(s) - 2
			for i >= 0 && !(s[i] == '"' && (i == 0 || s[i-1] != '\\')) {
				i--
			}
			if i >= 0 {
				s = s[:i]
			}
		}
		s = strings.TrimRight(s, " \t\r\n")
	}

	if strings.HasSuffix(s, ",") {
		s = strings.TrimRight(s[:len(s)-1], " \t\r\n")
	}
	return s
}

func normalizeAdvisoryResult(result *dto.AdvisoryResult) {
	for i := range result.Signals {
		sig := &result.Signals[i]
		sig.Symbol = strings.ToUpper(strings.TrimSpace(sig.Symbol))
		sig.Direction = strings.ToUpper(strings.TrimSpace(sig.Direction))
		sig.RiskLevel = strings.ToLower(strings.TrimSpace(sig.RiskLevel))
		if !utils.ContainsString([]string{"low", "medium", "high"}, sig.RiskLevel) {
			sig.RiskLevel = ""
		}
	}
	for i := range result.SuggestedOrders {
		ord := &result.SuggestedOrders[i]
		ord.Symbol = strings.ToUpper(strings.TrimSpace(ord.Symbol))
	}
}

// SynthesizeOrders fills the gap when the advisory returned actionable
// BUY/SELL signals without any suggested orders: one auto-generated order
// per signal, buys at the ideal entry (or last price), sells as a stop loss
// at the given stop (or 5% below the last price). Quantities stay zero here
// and are sized by the cycle.
func SynthesizeOrders(result *dto.AdvisoryResult, lastPrice func(symbol string) float64) []dto.SuggestedOrder {
	if len(result.SuggestedOrders) > 0 {
		return result.SuggestedOrders
	}

	var orders []dto.SuggestedOrder
	for _, sig := range result.Signals {
		switch sig.Direction {
		case string(entity.SignalDirectionBuy):
			price := 0.0
			if sig.IdealEntryPrice != nil && *sig.IdealEntryPrice > 0 {
				price = *sig.IdealEntryPrice
			} else {
				price = lastPrice(sig.Symbol)
			}
			if price <= 0 {
				continue
			}
			orders = append(orders, dto.SuggestedOrder{
				Symbol:        sig.Symbol,
				OrderType:     string(entity.OrderTypeLimitBuy),
				TriggerPrice:  price,
				Reasoning:     sig.Reasoning,
				AutoGenerated: true,
			})
		case string(entity.SignalDirectionSell):
			price := 0.0
			if sig.StopLoss != nil && *sig.StopLoss > 0 {
				price = *sig.StopLoss
			} else if lp := lastPrice(sig.Symbol); lp > 0 {
				price = lp * 0.95
			}
			if price <= 0 {
				continue
			}
			orders = append(orders, dto.SuggestedOrder{
				Symbol:        sig.Symbol,
				OrderType:     string(entity.OrderTypeStopLoss),
				TriggerPrice:  price,
				Reasoning:     sig.Reasoning,
				AutoGenerated: true,
			})
		}
	}
	return orders
}
