// Package notify publishes operational events (orders, balance snapshots,
// credential changes, lifecycle) to a chat channel. Delivery is best-effort:
// callers log failures and never block trading on them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"atd/internal/domain"
)

// Embed colors.
const (
	ColorInfo    = 0x0099ff
	ColorSuccess = 0x00ff00
	ColorError   = 0xff0000
	ColorBalance = 0x3498db
	ColorTest    = 0x9b59b6
)

// Footer texts identify which subsystem produced an event.
const (
	footerDefault = "ATD Auto Trading System"
	footerError   = "ATD Error Handler"
	footerBalance = "ATD Balance Monitor"
)

// Field is one name/value pair rendered inside an event.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Event is one notification. Timestamp is filled by the sender when zero.
type Event struct {
	Title       string
	Color       int
	Description string
	Fields      []Field
	Footer      string
	Timestamp   time.Time
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Nop discards every event. Used when no webhook URL is configured.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Send(context.Context, Event) error { return nil }

// OrderResultEvent describes a placed (or rejected) order. The footer names
// the account so multi-account feeds stay readable.
func OrderResultEvent(order domain.OrderRequest, result domain.OrderResult) Event {
	color := ColorSuccess
	status := "Success"
	if !result.Success {
		color = ColorError
		status = "Failed"
	}

	orderID := result.OrderID
	if orderID == "" {
		orderID = "N/A"
	}
	message := result.Message
	if message == "" {
		message = "Order processed"
	}

	return Event{
		Title: fmt.Sprintf("Order %s: %s %s", status, order.Action, order.Symbol),
		Color: color,
		Fields: []Field{
			{Name: "Symbol", Value: order.Symbol, Inline: true},
			{Name: "Action", Value: strings.ToUpper(order.Action), Inline: true},
			{Name: "Quantity", Value: orNA(string(order.Contracts)), Inline: true},
			{Name: "Price", Value: orNA(string(order.Price)), Inline: true},
			{Name: "Order ID", Value: orderID, Inline: true},
			{Name: "Message", Value: message, Inline: false},
		},
		Footer: "ATD | Account: " + order.Account,
	}
}

// BalanceEvent reports an account balance snapshot. Status distinguishes the
// pre-order and delayed post-order checks.
func BalanceEvent(status string, snap domain.BalanceSnapshot) Event {
	return Event{
		Title: "Account Balance Update",
		Color: ColorBalance,
		Fields: []Field{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Total Asset", Value: snap.TotalAsset.String(), Inline: true},
			{Name: "Deposit", Value: snap.Deposit.String(), Inline: true},
			{Name: "P&L", Value: snap.ProfitLoss.String(), Inline: true},
			{Name: "P&L Rate", Value: snap.ProfitRate.String() + "%", Inline: true},
		},
		Footer: footerBalance,
	}
}

// ErrorEvent wraps a failure for the feed.
func ErrorEvent(title string, err error) Event {
	message := "Unknown error"
	errType := "Error"
	if err != nil {
		message = err.Error()
		errType = fmt.Sprintf("%T", err)
	}
	return Event{
		Title: "Error: " + title,
		Color: ColorError,
		Fields: []Field{
			{Name: "Error Message", Value: message, Inline: false},
			{Name: "Error Type", Value: errType, Inline: true},
			{Name: "Timestamp", Value: time.Now().Format(time.RFC3339), Inline: true},
		},
		Footer: footerError,
	}
}

// StartupEvent announces the server coming online.
func StartupEvent(addr string) Event {
	return Event{
		Title: "ATD System Started",
		Color: ColorInfo,
		Fields: []Field{
			{Name: "Status", Value: "Online", Inline: true},
			{Name: "Address", Value: addr, Inline: true},
			{Name: "Webhook Path", Value: "/order", Inline: false},
		},
		Footer: footerDefault,
	}
}

// ShutdownEvent announces the server going offline.
func ShutdownEvent() Event {
	return Event{
		Title: "ATD System Shutdown",
		Color: ColorError,
		Fields: []Field{
			{Name: "Status", Value: "Offline", Inline: true},
		},
		Footer: footerDefault,
	}
}

// KeyEvent reports a credential mutation. action is "Added", "Updated" or
// "Removed".
func KeyEvent(action, account string, rec *domain.CredentialRecord) Event {
	color := ColorSuccess
	switch action {
	case "Updated":
		color = ColorBalance
	case "Removed":
		color = ColorError
	}

	fields := []Field{
		{Name: "Account", Value: account, Inline: true},
	}
	if rec != nil {
		mode := "Real"
		if rec.Sandbox {
			mode = "Sandbox"
		}
		fields = append(fields,
			Field{Name: "Account Number", Value: rec.AccountNumber, Inline: true},
			Field{Name: "Mode", Value: mode, Inline: true},
		)
	}

	return Event{
		Title:  "API Key " + action,
		Color:  color,
		Fields: fields,
		Footer: footerDefault,
	}
}

// TestEvent echoes an arbitrary test payload, truncated to keep the embed
// within the channel's limits.
func TestEvent(body any) Event {
	rendered, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		rendered = []byte(fmt.Sprint(body))
	}
	text := string(rendered)
	if len(text) > 1000 {
		cut := 1000
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	return Event{
		Title: "Test Webhook Received",
		Color: ColorTest,
		Fields: []Field{
			{Name: "Timestamp", Value: time.Now().Format(time.RFC3339), Inline: false},
			{Name: "Body", Value: text, Inline: false},
		},
		Footer: footerDefault,
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
