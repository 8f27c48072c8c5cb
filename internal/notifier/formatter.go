package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"WalletGuard/internal/model"
)

// FormatAlert renders an event as a Telegram alert.
func FormatAlert(evt model.Event) string {
	var b strings.Builder
	wallet := html.EscapeString(shortKey(evt.WalletKey))

	switch evt.Kind {
	case model.EventEmergencyFrozen:
		b.WriteString(fmt.Sprintf("🚨 <b>Emergency freeze</b> | %s\n", wallet))
		b.WriteString("The emergency contact has frozen this wallet. Only the owner can unfreeze it.\n")
	case model.EventFrozen:
		b.WriteString(fmt.Sprintf("🧊 <b>Wallet frozen</b> | %s\n", wallet))
	case model.EventUnfrozen:
		b.WriteString(fmt.Sprintf("✅ <b>Wallet unfrozen</b> | %s\n", wallet))
	case model.EventDenied:
		b.WriteString(fmt.Sprintf("⛔ <b>Transfer denied</b> | %s\n", wallet))
		b.WriteString(fmt.Sprintf("Amount: %s XLM", evt.Amount))
		if evt.Recipient != "" {
			b.WriteString(fmt.Sprintf(" → %s", html.EscapeString(shortKey(evt.Recipient))))
		}
		b.WriteString("\n")
		for _, r := range evt.Reasons {
			b.WriteString(fmt.Sprintf("  • %s\n", html.EscapeString(r)))
		}
	case model.EventLimitChanged:
		b.WriteString(fmt.Sprintf("⚙️ <b>%s limit changed</b> | %s\n", capitalize(evt.Note), wallet))
		b.WriteString(fmt.Sprintf("New limit: %s XLM\n", evt.Amount))
	default:
		b.WriteString(fmt.Sprintf("ℹ️ <b>%s</b> | %s\n", evt.Kind, wallet))
	}

	if evt.Record != nil {
		b.WriteString(fmt.Sprintf("Daily: %s/%s XLM | Monthly: %s/%s XLM\n",
			evt.Record.DailySpent, evt.Record.DailyLimit, evt.Record.MonthlySpent, evt.Record.MonthlyLimit))
	}
	b.WriteString(evt.Timestamp.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

// FormatSpendingInfo formats a wallet's limits for display.
func FormatSpendingInfo(walletKey string, info model.SpendingInfo) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>Spending limits</b> | %s\n\n", html.EscapeString(shortKey(walletKey))))
	b.WriteString(fmt.Sprintf("Daily: %s / %s XLM\n", info.DailySpent, info.DailyLimit))
	b.WriteString(fmt.Sprintf("Monthly: %s / %s XLM\n", info.MonthlySpent, info.MonthlyLimit))
	b.WriteString(fmt.Sprintf("Frozen: %v\n", info.IsFrozen))
	return b.String()
}

// FormatAnalytics formats a wallet's analytics summary.
func FormatAnalytics(walletKey string, a model.Analytics) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Analytics</b> | %s\n\n", html.EscapeString(shortKey(walletKey))))
	b.WriteString(fmt.Sprintf("Daily spent: %s / %s XLM\n", a.DailySpent, a.DailyLimit))
	b.WriteString(fmt.Sprintf("Monthly spent: %s / %s XLM\n", a.MonthlySpent, a.MonthlyLimit))
	b.WriteString(fmt.Sprintf("Logged transactions: %d\n", a.TotalTransactions))
	return b.String()
}

// FormatEvents lists recent audit entries, newest first.
func FormatEvents(walletKey string, events []model.Event) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>Recent activity</b> | %s\n\n", html.EscapeString(shortKey(walletKey))))
	if len(events) == 0 {
		b.WriteString("No recorded activity")
		return b.String()
	}
	for _, e := range events {
		b.WriteString(fmt.Sprintf("%s  %s", e.Timestamp.Format("01-02 15:04"), e.Kind))
		if !e.Amount.IsZero() {
			b.WriteString(fmt.Sprintf("  %s XLM", e.Amount))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// shortKey abbreviates a 56-character account ID to GABC…WXYZ.
func shortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:4] + "…" + key[len(key)-4:]
}

// FormatHistory lists logged transfers, oldest first.
func FormatHistory(walletKey string, txs []model.Transaction) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧾 <b>Recent transfers</b> | %s\n\n", html.EscapeString(shortKey(walletKey))))
	if len(txs) == 0 {
		b.WriteString("No transfers logged")
		return b.String()
	}
	for _, tx := range txs {
		b.WriteString(fmt.Sprintf("%s  %s XLM → %s", tx.Timestamp.Format("01-02 15:04"), tx.Amount, html.EscapeString(shortKey(tx.To))))
		if tx.Memo != "" {
			b.WriteString(fmt.Sprintf(" (%s)", html.EscapeString(tx.Memo)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatDailySummary reports the result of the daily analytics job.
func FormatDailySummary(wallets, frozen int, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Daily summary</b> | %s\n\n", at.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Wallets tracked: %d\n", wallets))
	b.WriteString(fmt.Sprintf("Frozen: %d\n", frozen))
	return b.String()
}
