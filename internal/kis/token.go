package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"atd/internal/credstore"
	"atd/internal/domain"
)

// cachedToken is one live bearer token for an account. Entries are
// overwritten on refresh, never merged, and never persisted across restarts.
type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenManager obtains and caches one bearer token per account. Expiry is
// checked lazily on each use; there is no proactive refresh. The cache map is
// mutex-guarded for memory safety only; two concurrent refreshes for the
// same account are allowed and the worst case is one redundant token fetch.
type TokenManager struct {
	creds      credstore.Store
	liveURL    string
	sandboxURL string
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken
}

// NewTokenManager creates a TokenManager reading credentials from creds and
// requesting tokens from the given live/sandbox base URLs.
func NewTokenManager(creds credstore.Store, liveURL, sandboxURL string, httpClient *http.Client) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenManager{
		creds:      creds,
		liveURL:    liveURL,
		sandboxURL: sandboxURL,
		httpClient: httpClient,
		tokens:     make(map[string]cachedToken),
	}
}

// Token returns a usable bearer token for the account, reusing the cached
// one while it has not expired.
func (m *TokenManager) Token(ctx context.Context, account string) (string, error) {
	m.mu.Lock()
	cached, ok := m.tokens[account]
	m.mu.Unlock()
	if ok && cached.expiresAt.After(time.Now()) {
		return cached.token, nil
	}
	return m.refresh(ctx, account)
}

// Invalidate drops the cached token for an account. Used when the account's
// credentials are removed or replaced.
func (m *TokenManager) Invalidate(account string) {
	m.mu.Lock()
	delete(m.tokens, account)
	m.mu.Unlock()
}

// refresh requests a fresh token from the brokerage and caches it.
func (m *TokenManager) refresh(ctx context.Context, account string) (string, error) {
	rec, err := m.creds.Get(ctx, account)
	if err != nil {
		return "", &domain.AuthError{Account: account, Err: err}
	}
	if rec == nil {
		return "", &domain.AuthError{Account: account, Err: errors.New("credential not found")}
	}

	base := m.liveURL
	if rec.Sandbox {
		base = m.sandboxURL
	}

	body, err := json.Marshal(tokenRequest{
		GrantType: "client_credentials",
		AppKey:    rec.AppKey,
		AppSecret: rec.AppSecret,
	})
	if err != nil {
		return "", &domain.AuthError{Account: account, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", &domain.AuthError{Account: account, Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", &domain.AuthError{Account: account, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.AuthError{Account: account, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.AuthError{
			Account: account,
			Err:     fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, bytes.TrimSpace(data)),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", &domain.AuthError{Account: account, Err: fmt.Errorf("parsing token response: %w", err)}
	}
	if tok.AccessToken == "" {
		return "", &domain.AuthError{
			Account: account,
			Err:     fmt.Errorf("token endpoint error %s: %s", tok.ErrorCode, tok.ErrorDescription),
		}
	}

	m.mu.Lock()
	m.tokens[account] = cachedToken{
		token:     tok.AccessToken,
		expiresAt: time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	m.mu.Unlock()

	return tok.AccessToken, nil
}
