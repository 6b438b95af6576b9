package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"atd/internal/domain"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore keeps credential records in memory and persists them to a single
// JSON file. Every mutation rewrites the whole file; reads never touch disk
// after the initial load.
type FileStore struct {
	mu       sync.RWMutex
	records  map[string]domain.CredentialRecord
	filePath string
}

// NewFileStore creates a FileStore backed by the JSON file at filePath. A
// missing file starts the store empty; a malformed one is an error.
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		records:  make(map[string]domain.CredentialRecord),
		filePath: filePath,
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("parsing credential file %s: %w", filePath, err)
	}

	return s, nil
}

// Get retrieves the credential record for an account, or nil if absent.
func (s *FileStore) Get(_ context.Context, account string) (*domain.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[account]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Upsert creates or replaces the credential record for an account and
// rewrites the file.
func (s *FileStore) Upsert(_ context.Context, account string, rec domain.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[account] = rec
	return s.flush()
}

// Remove deletes the credential record for an account and rewrites the file.
// Removing an absent account is a no-op.
func (s *FileStore) Remove(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[account]; !ok {
		return nil
	}
	delete(s.records, account)
	return s.flush()
}

// Accounts returns all configured account names, sorted.
func (s *FileStore) Accounts(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]string, 0, len(s.records))
	for name := range s.records {
		accounts = append(accounts, name)
	}
	sort.Strings(accounts)
	return accounts, nil
}

// Close is a no-op; the file is rewritten eagerly on every mutation.
func (s *FileStore) Close() error { return nil }

// flush writes the in-memory state to disk. Must be called with mu held.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("creating credential dir: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return nil
}
