package telegram

import (
	"fmt"
	"strings"
	"time"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/utils"
)

func orderTypeIcon(orderType entity.OrderType) string {
	if orderType.IsBuy() {
		return "🟢"
	}
	return "🔴"
}

// FormatOrderCreatedMessage formats a new standing order into a Markdown
// string for Telegram.
func FormatOrderCreatedMessage(order *entity.Order) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("%s *New Order: %s*\n\n", orderTypeIcon(order.OrderType), order.Symbol))
	builder.WriteString(fmt.Sprintf("📋 *Type:* %s\n", order.OrderType))
	builder.WriteString(fmt.Sprintf("🔢 *Quantity:* %d\n", order.Quantity))
	builder.WriteString(fmt.Sprintf("💰 *Trigger Price:* %.2f EUR\n", order.TriggerPrice))
	builder.WriteString(fmt.Sprintf("📌 *Status:* %s\n", order.Status))
	builder.WriteString(fmt.Sprintf("🧭 *Source:* %s\n", order.Source))
	if order.ExpiresAt != nil {
		builder.WriteString(fmt.Sprintf("⏳ *Expires:* %s\n", utils.PrettyDate(*order.ExpiresAt)))
	}
	if order.Note != "" {
		builder.WriteString(fmt.Sprintf("\n🤔 *Reasoning:*\n_%s_\n", order.Note))
	}

	return builder.String()
}

// FormatOrderExecutedMessage formats a filled order into a Markdown string
// for Telegram.
func FormatOrderExecutedMessage(order *entity.Order) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("✅ *Order Executed: %s*\n\n", order.Symbol))
	builder.WriteString(fmt.Sprintf("📋 *Type:* %s\n", order.OrderType))
	builder.WriteString(fmt.Sprintf("🔢 *Quantity:* %d\n", order.Quantity))
	if order.ExecutedPrice != nil {
		executedPrice := *order.ExecutedPrice
		builder.WriteString(fmt.Sprintf("💰 *Executed Price:* %.2f EUR\n", executedPrice))
		builder.WriteString(fmt.Sprintf("💶 *Notional:* %.2f EUR\n", float64(order.Quantity)*executedPrice))
	}
	builder.WriteString(fmt.Sprintf("🧾 *Fee:* %.2f EUR\n", order.Fee))
	if order.ExecutedAt != nil {
		builder.WriteString(fmt.Sprintf("📅 %s\n", utils.PrettyDate(*order.ExecutedAt)))
	}

	return builder.String()
}

// FormatCycleSummaryMessages formats one cycle summary into Markdown strings
// for Telegram, chunked so no message exceeds the Telegram length limit.
func FormatCycleSummaryMessages(summary *dto.CycleSummary) []string {
	const maxLen = 4090
	var messages []string
	var currentMessage strings.Builder
	part := 1

	startNewPart := func() {
		currentMessage.Reset()
		var header string
		if part == 1 {
			header = "🤖 *Autopilot Cycle Summary* 🤖\n\n"
		} else {
			header = fmt.Sprintf("---*Autopilot Cycle Summary Part %d*---\n\n", part)
		}
		currentMessage.WriteString(header)
	}

	appendEntry := func(entry string) {
		if currentMessage.Len()+len(entry) > maxLen {
			messages = append(messages, currentMessage.String())
			part++
			startNewPart()
		}
		currentMessage.WriteString(entry)
	}

	startNewPart()

	var head strings.Builder
	head.WriteString(fmt.Sprintf("📅 %s\n", utils.PrettyDate(summary.StartedAt)))
	head.WriteString(fmt.Sprintf("🔍 *Symbols Scanned:* %d\n", summary.SymbolsScanned))
	head.WriteString(fmt.Sprintf("📡 *Signals:* %d\n", summary.SignalCount))
	head.WriteString(fmt.Sprintf("📝 *Orders Created:* %d\n", len(summary.OrdersCreated)))
	head.WriteString(fmt.Sprintf("⏱ *Duration:* %s\n\n", summary.Duration.Round(time.Millisecond)))
	appendEntry(head.String())

	if summary.MarketSummary != "" {
		appendEntry(fmt.Sprintf("🌍 *Market:* _%s_\n\n", summary.MarketSummary))
	}

	for _, order := range summary.OrdersCreated {
		appendEntry(fmt.Sprintf("🟢 %s %s %d @ %.2f EUR (%s)\n", order.OrderType, order.Symbol, order.Quantity, order.TriggerPrice, order.Status))
	}
	if len(summary.OrdersCreated) > 0 {
		appendEntry("\n")
	}

	if len(summary.Skipped) > 0 {
		appendEntry("🚫 *Skipped:*\n")
		for _, skip := range summary.Skipped {
			appendEntry(fmt.Sprintf("• [%s] %s: %s\n", skip.Symbol, skip.Rule, skip.Reason))
		}
		appendEntry("\n")
	}

	for _, suggestion := range summary.Suggestions {
		appendEntry(fmt.Sprintf("💡 %s\n", suggestion))
	}

	for _, warning := range summary.Warnings {
		appendEntry(fmt.Sprintf("⚠️ %s\n", warning))
	}

	messages = append(messages, currentMessage.String())
	return messages
}

// FormatDailySummaryMessage formats the end-of-day portfolio snapshot into a
// Markdown string for Telegram.
func FormatDailySummaryMessage(portfolio *entity.Portfolio, positions []entity.Position, openOrders []entity.Order) string {
	var builder strings.Builder

	builder.WriteString("📊 *Daily Portfolio Summary* 📊\n")
	builder.WriteString(fmt.Sprintf("📅 %s\n\n", utils.PrettyDate(utils.TimeNowBerlin())))

	positionsValue := 0.0
	for _, p := range positions {
		positionsValue += p.MarketValue()
	}
	builder.WriteString(fmt.Sprintf("💶 *Cash:* %.2f %s\n", portfolio.CashBalance, portfolio.Currency))
	builder.WriteString(fmt.Sprintf("📈 *Positions Value:* %.2f %s\n", positionsValue, portfolio.Currency))
	builder.WriteString(fmt.Sprintf("💰 *Total:* %.2f %s\n\n", portfolio.CashBalance+positionsValue, portfolio.Currency))

	if len(positions) > 0 {
		builder.WriteString("*Holdings:*\n")
		for _, p := range positions {
			pnl := 0.0
			if p.AvgBuyPrice > 0 && p.CurrentPrice > 0 {
				pnl = (p.CurrentPrice - p.AvgBuyPrice) / p.AvgBuyPrice * 100
			}
			icon := "😐"
			if pnl > 0 {
				icon = "😊"
			} else if pnl < 0 {
				icon = "😟"
			}
			builder.WriteString(fmt.Sprintf("%s `%s` %d @ %.2f (%+.2f%%)\n", icon, p.Symbol, p.Quantity, p.AvgBuyPrice, pnl))
		}
		builder.WriteString("\n")
	}

	if len(openOrders) > 0 {
		builder.WriteString("*Open Orders:*\n")
		for _, o := range openOrders {
			builder.WriteString(fmt.Sprintf("%s %s %s %d @ %.2f\n", orderTypeIcon(o.OrderType), o.OrderType, o.Symbol, o.Quantity, o.TriggerPrice))
		}
	}

	return builder.String()
}

// FormatCircuitBreakerMessage formats the anomalous price move alert into a
// Markdown string for Telegram.
func FormatCircuitBreakerMessage(order *entity.Order, price float64, movePercent float64) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("⚡️ *Circuit Breaker: %s*\n\n", order.Symbol))
	builder.WriteString(fmt.Sprintf("📋 *Order:* %s %d @ %.2f EUR\n", order.OrderType, order.Quantity, order.TriggerPrice))
	builder.WriteString(fmt.Sprintf("📉 *Last Known Price:* %.2f EUR\n", order.LastKnownPrice))
	builder.WriteString(fmt.Sprintf("💥 *Quoted Price:* %.2f EUR (%+.1f%%)\n\n", price, movePercent))
	builder.WriteString("_Execution withheld, order stays active until the move is confirmed._\n")

	return builder.String()
}

func FormatErrorAlertMessage(time time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(time), errType, errMsg, data)
}
