package domain

import "fmt"

// ValidationError reports a malformed or incomplete order request. It is
// terminal for that order and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + e.Reason
}

// AuthError reports a failed token acquisition or a missing credential
// record. Terminal; propagates to the caller without retry.
type AuthError struct {
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed for account %q: %v", e.Account, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// OrderError reports an upstream rejection of an order. Message carries the
// brokerage's status text verbatim. Never retried: a duplicate submission
// would duplicate the financial side effect.
type OrderError struct {
	Code    string
	Message string
}

func (e *OrderError) Error() string {
	if e.Code == "" {
		return "order rejected: " + e.Message
	}
	return fmt.Sprintf("order rejected (rt_cd=%s): %s", e.Code, e.Message)
}

// BalanceError reports a failed balance inquiry. It is informational: callers
// in the order pipeline log it and continue.
type BalanceError struct {
	Account string
	Err     error
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("balance inquiry failed for account %q: %v", e.Account, e.Err)
}

func (e *BalanceError) Unwrap() error {
	return e.Err
}

// NoAccountError reports that an operation needing any configured account
// (such as a shared price lookup) found none.
type NoAccountError struct{}

func (e *NoAccountError) Error() string {
	return "no accounts configured"
}
