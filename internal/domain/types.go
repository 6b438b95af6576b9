// Package domain defines the core types shared across the ATD signal relay:
// credential records, order requests and results, balance snapshots, and the
// error taxonomy used by the order pipeline.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAccount is the account used when an inbound signal does not name one.
const DefaultAccount = "default"

// Order actions accepted from the signal source.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// CredentialRecord binds a local account name to one brokerage trading
// account. The account number encodes two values: the first 8 characters are
// the cash account prefix (CANO) and the remainder is the product code.
type CredentialRecord struct {
	AppKey        string    `json:"appKey"`
	AppSecret     string    `json:"appSecret"`
	AccountNumber string    `json:"accountNumber"`
	Sandbox       bool      `json:"isSandbox"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CANO returns the 8-character account prefix required by the brokerage API.
func (c CredentialRecord) CANO() string {
	if len(c.AccountNumber) < 8 {
		return c.AccountNumber
	}
	return c.AccountNumber[:8]
}

// ProductCode returns the account product code that follows the prefix.
func (c CredentialRecord) ProductCode() string {
	if len(c.AccountNumber) <= 8 {
		return ""
	}
	return c.AccountNumber[8:]
}

// Numeric is a pass-through numeric field that the signal source emits as
// either a JSON string or a bare number. It is kept as its string form.
type Numeric string

// UnmarshalJSON accepts both `"3"` and `3`.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = Numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = Numeric(num.String())
	return nil
}

// OrderRequest is one trading signal to act on. It exists only for the
// duration of a single processing call.
type OrderRequest struct {
	Account   string  `json:"account,omitempty"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Contracts Numeric `json:"contracts"`
	// Price is advisory only; orders are always placed at market.
	Price    Numeric `json:"price,omitempty"`
	Time     string  `json:"time,omitempty"`
	Exchange string  `json:"exchange,omitempty"`
}

// Normalize returns a copy with the default-account fallback applied, so
// every downstream component can assume a non-empty account identifier.
func (r OrderRequest) Normalize() OrderRequest {
	if r.Account == "" {
		r.Account = DefaultAccount
	}
	return r
}

// OrderResult is the outcome of one placement attempt. OrderID is present
// exactly when Success is true.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

// BalanceSnapshot is a point-in-time read of an account's equity and
// profit/loss figures. Two snapshots are taken per order (before/after); the
// system never reconciles them against each other.
type BalanceSnapshot struct {
	TotalAsset decimal.Decimal `json:"totalAsset"`
	Deposit    decimal.Decimal `json:"deposit"`
	TotalBuy   decimal.Decimal `json:"totalBuy"`
	TotalEval  decimal.Decimal `json:"totalEval"`
	ProfitLoss decimal.Decimal `json:"profitLoss"`
	ProfitRate decimal.Decimal `json:"profitRate"`
}

// Position is one holding row from the brokerage account-balance inquiry.
type Position struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	EvalAmount decimal.Decimal `json:"evalAmount"`
	ProfitLoss decimal.Decimal `json:"profitLoss"`
}

// AccountSummary combines an account's balance snapshot with its open
// positions.
type AccountSummary struct {
	Balance   BalanceSnapshot `json:"balance"`
	Positions []Position      `json:"positions"`
}

// PriceQuote is the result of a public quote lookup.
type PriceQuote struct {
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	ChangeRate   decimal.Decimal `json:"changeRate"`
	Volume       int64           `json:"volume"`
}
