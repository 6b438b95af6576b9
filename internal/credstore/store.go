// Package credstore persists the mapping from account name to brokerage
// credential record. Two backends are provided: a JSON file that is fully
// rewritten on every change, and a SQLite database.
package credstore

import (
	"context"
	"fmt"

	"atd/internal/domain"
)

// Store is the credential store consumed by the order pipeline. Get returns
// (nil, nil) when the account is absent; absence is not an error at this
// layer.
type Store interface {
	// Get retrieves the credential record for an account, or nil if absent.
	Get(ctx context.Context, account string) (*domain.CredentialRecord, error)

	// Upsert creates or replaces the credential record for an account.
	Upsert(ctx context.Context, account string, rec domain.CredentialRecord) error

	// Remove deletes the credential record for an account.
	Remove(ctx context.Context, account string) error

	// Accounts returns all configured account names, sorted.
	Accounts(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Open constructs a Store for the given backend ("file" or "sqlite") and
// path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown credential store backend %q", backend)
	}
}
