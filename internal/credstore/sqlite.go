package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"atd/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	account        TEXT PRIMARY KEY,
	app_key        TEXT NOT NULL,
	app_secret     TEXT NOT NULL,
	account_number TEXT NOT NULL,
	sandbox        INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);`

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createCredentialsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credentials table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get retrieves the credential record for an account, or nil if absent.
func (s *SQLiteStore) Get(ctx context.Context, account string) (*domain.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT app_key, app_secret, account_number, sandbox, created_at
		 FROM credentials WHERE account = ?`, account)

	var rec domain.CredentialRecord
	var sandbox int
	var createdAt string
	err := row.Scan(&rec.AppKey, &rec.AppSecret, &rec.AccountNumber, &sandbox, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Sandbox = sandbox != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

// Upsert creates or replaces the credential record for an account.
func (s *SQLiteStore) Upsert(ctx context.Context, account string, rec domain.CredentialRecord) error {
	sandbox := 0
	if rec.Sandbox {
		sandbox = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (account, app_key, app_secret, account_number, sandbox, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account) DO UPDATE SET
			app_key = excluded.app_key,
			app_secret = excluded.app_secret,
			account_number = excluded.account_number,
			sandbox = excluded.sandbox,
			created_at = excluded.created_at`,
		account, rec.AppKey, rec.AppSecret, rec.AccountNumber, sandbox,
		rec.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// Remove deletes the credential record for an account.
func (s *SQLiteStore) Remove(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE account = ?`, account)
	return err
}

// Accounts returns all configured account names, sorted.
func (s *SQLiteStore) Accounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account FROM credentials ORDER BY account`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		accounts = append(accounts, name)
	}
	return accounts, rows.Err()
}
