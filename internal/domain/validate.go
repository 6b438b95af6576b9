package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks an order request for required fields and value sanity. It
// is a pure function with no side effects and must run before any state is
// touched or any network call is made. A nil return means the request is
// safe to hand to the broker gateway.
func Validate(r OrderRequest) error {
	var missing []string
	if r.Symbol == "" {
		missing = append(missing, "symbol")
	}
	if r.Action == "" {
		missing = append(missing, "action")
	}
	if r.Contracts == "" {
		missing = append(missing, "contracts")
	}
	if len(missing) > 0 {
		return &ValidationError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}

	switch strings.ToLower(r.Action) {
	case ActionBuy, ActionSell:
	default:
		return &ValidationError{Reason: fmt.Sprintf("action %q must be 'buy' or 'sell'", r.Action)}
	}

	n, err := strconv.Atoi(string(r.Contracts))
	if err != nil || n <= 0 {
		return &ValidationError{Reason: fmt.Sprintf("contracts %q must be a positive integer", r.Contracts)}
	}

	return nil
}
