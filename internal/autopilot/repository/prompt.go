package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"stock-autopilot/internal/autopilot/dto"
)

// BuildAdvisoryPrompt renders the full cycle context for the advisory model.
// The response schema here is the contract ParseAdvisoryText depends on.
func BuildAdvisoryPrompt(req *dto.AdvisoryRequest) string {
	stocksJSON, _ := json.MarshalIndent(req.Stocks, "", "  ")
	positionsJSON, _ := json.Marshal(req.Positions)
	ordersJSON, _ := json.Marshal(req.OpenOrders)
	signalsJSON, _ := json.Marshal(req.RecentSignals)

	var b strings.Builder

	b.WriteString(`You are a disciplined portfolio advisor for a private investor. You receive the full portfolio state and enriched market data and respond with trading signals and concrete order suggestions.

### MANDATE
`)
	b.WriteString(fmt.Sprintf("- Strategy: %s\n", req.Strategy))
	b.WriteString(fmt.Sprintf("- Risk tolerance: %s\n", req.RiskTolerance))
	if req.CustomInstructions != "" {
		b.WriteString(fmt.Sprintf("- Additional instructions from the investor: %s\n", req.CustomInstructions))
	}

	b.WriteString("\n### PORTFOLIO\n")
	b.WriteString(fmt.Sprintf("- Available cash: %.2f %s\n", req.Cash, req.Currency))
	b.WriteString(fmt.Sprintf("- Total portfolio value: %.2f %s\n", req.PortfolioValue, req.Currency))
	b.WriteString(fmt.Sprintf("- Positions: %s\n", string(positionsJSON)))
	b.WriteString(fmt.Sprintf("- Open orders (do not duplicate these): %s\n", string(ordersJSON)))

	b.WriteString("\n### MARKET DATA\n")
	b.WriteString("Stocks under consideration, with technical indicators (null fields mean insufficient history):\n")
	b.WriteString(string(stocksJSON))
	b.WriteString("\n")

	b.WriteString("\n### RECENT SIGNAL HISTORY\n")
	b.WriteString("Your own most recent signals. Avoid flip-flopping without a clear reason:\n")
	b.WriteString(string(signalsJSON))
	b.WriteString("\n")

	if len(req.NewsDigest) > 0 {
		digestJSON, _ := json.Marshal(req.NewsDigest)
		b.WriteString("\n### NEWS DIGEST\n")
		b.WriteString(string(digestJSON))
		b.WriteString("\n")
	}

	b.WriteString(`
### RESPONSE FORMAT
Respond with a single JSON object and nothing else:
{
  "signals": [
    {
      "symbol": "<ticker>",
      "direction": "BUY | SELL | HOLD",
      "confidence": <number 0-100>,
      "reasoning": "<one or two sentences>",
      "idealEntryPrice": <number, optional>,
      "targetPrice": <number, optional>,
      "stopLoss": <number, optional>,
      "riskLevel": "low | medium | high"
    }
  ],
  "suggestedOrders": [
    {
      "symbol": "<ticker>",
      "orderType": "limit_buy | limit_sell | stop_buy | stop_loss",
      "quantity": <whole number of shares>,
      "triggerPrice": <number>,
      "reasoning": "<short>"
    }
  ],
  "marketSummary": "<one paragraph>",
  "recommendations": ["<short actionable note>"],
  "warnings": ["<risk the investor should know about>"]
}

Rules:
- Only reference symbols from the market data above.
- Suggested order quantities must respect the available cash.
- Do not suggest sells for symbols without a position.
- Answer with the JSON object only, no prose around it.
`)

	return b.String()
}
