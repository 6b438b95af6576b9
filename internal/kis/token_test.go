package kis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"atd/internal/credstore"
	"atd/internal/domain"
)

// newTestStore builds a credential store with one sandbox account "default".
func newTestStore(t *testing.T) credstore.Store {
	t.Helper()
	s, err := credstore.NewFileStore(filepath.Join(t.TempDir(), "apikeys.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	err = s.Upsert(context.Background(), "default", domain.CredentialRecord{
		AppKey:        "test-key",
		AppSecret:     "test-secret",
		AccountNumber: "1234567801",
		Sandbox:       true,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return s
}

func tokenHandler(calls *atomic.Int64, expiresIn int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GrantType != "client_credentials" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "tok-" + time.Now().Format("150405.000000000"),
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		})
	}
}

func TestTokenReuseWithinExpiry(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/tokenP" {
			http.NotFound(w, r)
			return
		}
		tokenHandler(&calls, 3600)(w, r)
	}))
	defer ts.Close()

	m := NewTokenManager(newTestStore(t), ts.URL, ts.URL, nil)
	ctx := context.Background()

	first, err := m.Token(ctx, "default")
	if err != nil {
		t.Fatalf("first Token: %v", err)
	}
	second, err := m.Token(ctx, "default")
	if err != nil {
		t.Fatalf("second Token: %v", err)
	}

	if first != second {
		t.Errorf("cached token changed: %q != %q", first, second)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}
}

func TestTokenRefreshAfterExpiry(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// expires_in 0 makes every cached entry already expired.
		tokenHandler(&calls, 0)(w, r)
	}))
	defer ts.Close()

	m := NewTokenManager(newTestStore(t), ts.URL, ts.URL, nil)
	ctx := context.Background()

	if _, err := m.Token(ctx, "default"); err != nil {
		t.Fatalf("first Token: %v", err)
	}
	if _, err := m.Token(ctx, "default"); err != nil {
		t.Fatalf("second Token: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("token endpoint called %d times, want 2 (one per expired use)", got)
	}
}

func TestTokenMissingCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("token endpoint must not be reached for a missing credential")
	}))
	defer ts.Close()

	m := NewTokenManager(newTestStore(t), ts.URL, ts.URL, nil)
	_, err := m.Token(context.Background(), "nonexistent")

	var aerr *domain.AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("Token(nonexistent) error = %v, want AuthError", err)
	}
}

func TestTokenUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_code":"EGW00133","error_description":"invalid appsecret"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	m := NewTokenManager(newTestStore(t), ts.URL, ts.URL, nil)
	_, err := m.Token(context.Background(), "default")

	var aerr *domain.AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("Token error = %v, want AuthError", err)
	}
}

func TestTokenInvalidate(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(tokenHandler(&calls, 3600))
	defer ts.Close()

	m := NewTokenManager(newTestStore(t), ts.URL, ts.URL, nil)
	ctx := context.Background()

	if _, err := m.Token(ctx, "default"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	m.Invalidate("default")
	if _, err := m.Token(ctx, "default"); err != nil {
		t.Fatalf("Token after Invalidate: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("token endpoint called %d times, want 2 after invalidation", got)
	}
}
