// Package engine coordinates one order from validated request to placed
// trade: credential lookup, best-effort balance snapshots around the order,
// and notification fan-out. Orders are never retried.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"atd/internal/credstore"
	"atd/internal/domain"
	"atd/internal/notify"
)

// Gateway is the broker surface the engine trades through.
type Gateway interface {
	PlaceOrder(ctx context.Context, account string, order domain.OrderRequest) (domain.OrderResult, error)
	Balance(ctx context.Context, account string) (domain.BalanceSnapshot, error)
	Positions(ctx context.Context, account string) ([]domain.Position, error)
	CurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error)
}

// BulkEntry is the outcome of one order within a bulk submission.
type BulkEntry struct {
	Order   domain.OrderRequest `json:"order"`
	Result  *domain.OrderResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
	Success bool                `json:"success"`
}

// Engine processes orders sequentially per call and runs the delayed
// post-order balance check on a background goroutine per order.
type Engine struct {
	creds          credstore.Store
	gateway        Gateway
	notifier       notify.Notifier
	log            *slog.Logger
	postOrderDelay time.Duration

	bg sync.WaitGroup
}

// New creates an Engine. postOrderDelay is how long to wait before the
// follow-up balance check after an accepted order.
func New(creds credstore.Store, gateway Gateway, notifier notify.Notifier, log *slog.Logger, postOrderDelay time.Duration) *Engine {
	return &Engine{
		creds:          creds,
		gateway:        gateway,
		notifier:       notifier,
		log:            log.With("module", "engine"),
		postOrderDelay: postOrderDelay,
	}
}

// fire delivers one notification, logging a delivery failure instead of
// propagating it.
func (e *Engine) fire(ctx context.Context, ev notify.Event) {
	if err := e.notifier.Send(ctx, ev); err != nil {
		e.log.Warn("notification failed", "title", ev.Title, "error", err)
	}
}

// ProcessOrder places one order. Failures in the pre-order balance snapshot
// are logged and do not stop the order; a placement failure is notified and
// returned, and skips the post-order check.
func (e *Engine) ProcessOrder(ctx context.Context, raw domain.OrderRequest) (domain.OrderResult, error) {
	var zero domain.OrderResult

	order := raw.Normalize()
	if err := domain.Validate(order); err != nil {
		return zero, err
	}

	e.log.Info("processing order",
		"account", order.Account,
		"symbol", order.Symbol,
		"action", order.Action,
		"contracts", order.Contracts,
	)

	rec, err := e.creds.Get(ctx, order.Account)
	if err != nil {
		aerr := &domain.AuthError{Account: order.Account, Err: err}
		e.fire(ctx, notify.ErrorEvent("Order Processing Failed", aerr))
		return zero, aerr
	}
	if rec == nil {
		aerr := &domain.AuthError{Account: order.Account, Err: errors.New("account not found")}
		e.fire(ctx, notify.ErrorEvent("Order Processing Failed", aerr))
		return zero, aerr
	}

	if before, err := e.gateway.Balance(ctx, order.Account); err != nil {
		e.log.Warn("balance check before order failed", "account", order.Account, "error", err)
	} else {
		e.fire(ctx, notify.BalanceEvent("Before Order", before))
	}

	result, err := e.gateway.PlaceOrder(ctx, order.Account, order)
	if err != nil {
		e.fire(ctx, notify.ErrorEvent("Order Processing Failed", err))
		return zero, err
	}

	e.fire(ctx, notify.OrderResultEvent(order, result))
	e.schedulePostOrderCheck(order.Account)
	return result, nil
}

// schedulePostOrderCheck runs the delayed balance inquiry on its own
// goroutine. The goroutine outlives the request context on purpose; Drain
// waits for it during shutdown.
func (e *Engine) schedulePostOrderCheck(account string) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		time.Sleep(e.postOrderDelay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		after, err := e.gateway.Balance(ctx, account)
		if err != nil {
			e.log.Warn("balance check after order failed", "account", account, "error", err)
			return
		}
		e.fire(ctx, notify.BalanceEvent("After Order", after))
	}()
}

// ProcessBulk places orders strictly in input order, one at a time. A failed
// order is recorded and does not stop the rest.
func (e *Engine) ProcessBulk(ctx context.Context, orders []domain.OrderRequest) []BulkEntry {
	entries := make([]BulkEntry, 0, len(orders))
	for _, raw := range orders {
		entry := BulkEntry{Order: raw.Normalize()}
		result, err := e.ProcessOrder(ctx, raw)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Result = &result
			entry.Success = true
		}
		entries = append(entries, entry)
	}
	return entries
}

// AccountSummary combines the balance snapshot and open positions for one
// account.
func (e *Engine) AccountSummary(ctx context.Context, account string) (domain.AccountSummary, error) {
	var summary domain.AccountSummary

	balance, err := e.gateway.Balance(ctx, account)
	if err != nil {
		return summary, err
	}
	positions, err := e.gateway.Positions(ctx, account)
	if err != nil {
		return summary, err
	}

	summary = domain.AccountSummary{Balance: balance, Positions: positions}
	return summary, nil
}

// AllAccountsSummary summarizes every configured account. Inquiries run
// concurrently; a failing account contributes an error entry instead of
// aborting the whole summary.
func (e *Engine) AllAccountsSummary(ctx context.Context) (map[string]any, error) {
	accounts, err := e.creds.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(accounts))
	sem := make(chan struct{}, 4)

	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			summary, err := e.AccountSummary(gctx, account)
			if err != nil {
				e.log.Warn("account summary failed", "account", account, "error", err)
				results[i] = map[string]string{"error": err.Error()}
				return nil
			}
			results[i] = summary
			return nil
		})
	}
	// Goroutines substitute errors instead of returning them.
	_ = g.Wait()

	summaries := make(map[string]any, len(accounts))
	for i, account := range accounts {
		summaries[account] = results[i]
	}
	return summaries, nil
}

// Balance proxies a balance inquiry through the broker gateway.
func (e *Engine) Balance(ctx context.Context, account string) (domain.BalanceSnapshot, error) {
	return e.gateway.Balance(ctx, account)
}

// CurrentPrice proxies a quote lookup through the broker gateway.
func (e *Engine) CurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	return e.gateway.CurrentPrice(ctx, symbol)
}

// Drain blocks until every scheduled post-order check has finished, or the
// context expires.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
