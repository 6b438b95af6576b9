// Package httpapi serves the webhook intake and the authenticated management
// API. The webhook path always answers 200 so the upstream alert sender
// never retries; order placement happens after the response is written.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"atd/internal/credstore"
	"atd/internal/domain"
	"atd/internal/engine"
	"atd/internal/notify"
)

// TokenInvalidator drops cached broker tokens when credentials change.
type TokenInvalidator interface {
	Invalidate(account string)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	engine   *engine.Engine
	creds    credstore.Store
	tokens   TokenInvalidator
	notifier notify.Notifier
	log      *slog.Logger

	username  string
	password  string
	staticDir string
	started   time.Time

	bg sync.WaitGroup
}

// NewServer creates the HTTP server. username/password guard the /api
// routes; staticDir is served at the root when non-empty.
func NewServer(eng *engine.Engine, creds credstore.Store, tokens TokenInvalidator, notifier notify.Notifier, username, password, staticDir string, log *slog.Logger) *Server {
	return &Server{
		engine:    eng,
		creds:     creds,
		tokens:    tokens,
		notifier:  notifier,
		log:       log.With("module", "httpapi"),
		username:  username,
		password:  password,
		staticDir: staticDir,
		started:   time.Now(),
	}
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Webhook intake. /webhook and /tradingview are aliases of /order.
	mux.HandleFunc("POST /order", s.handleWebhook)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /tradingview", s.handleWebhook)
	mux.HandleFunc("POST /test", s.handleTest)
	mux.HandleFunc("GET /webhook/status", s.handleWebhookStatus)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Management API, behind basic auth.
	mux.HandleFunc("GET /api/keys", s.auth(s.handleListKeys))
	mux.HandleFunc("POST /api/keys", s.auth(s.handleAddKey))
	mux.HandleFunc("PUT /api/keys/{account}", s.auth(s.handleUpdateKey))
	mux.HandleFunc("DELETE /api/keys/{account}", s.auth(s.handleRemoveKey))
	mux.HandleFunc("GET /api/balance/{account}", s.auth(s.handleBalance))
	mux.HandleFunc("GET /api/summary", s.auth(s.handleSummary))
	mux.HandleFunc("GET /api/price/{symbol}", s.auth(s.handlePrice))
	mux.HandleFunc("POST /api/order", s.auth(s.handleManualOrder))
	mux.HandleFunc("POST /api/orders", s.auth(s.handleBulkOrders))

	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}
}

// Handler returns the full handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// Drain waits for in-flight webhook handoffs to finish or the context to
// expire.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auth enforces basic auth with constant-time comparisons.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="atd"`)
			writeError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// fire delivers one notification, logging delivery failures.
func (s *Server) fire(ctx context.Context, ev notify.Event) {
	if err := s.notifier.Send(ctx, ev); err != nil {
		s.log.Warn("notification failed", "title", ev.Title, "error", err)
	}
}

// handleWebhook acknowledges a TradingView alert and hands the order to the
// engine after the response is written. Validation failures still answer
// 200, with an error body, so the sender does not retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var order domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.rejectWebhook(w, r, &domain.ValidationError{Reason: "malformed JSON payload"})
		return
	}

	s.log.Info("webhook received",
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"symbol", order.Symbol,
		"action", order.Action,
	)

	normalized := order.Normalize()
	if err := domain.Validate(normalized); err != nil {
		s.rejectWebhook(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "received",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if _, err := s.engine.ProcessOrder(ctx, normalized); err != nil {
			s.log.Error("async order processing failed", "error", err)
			s.fire(ctx, notify.ErrorEvent("Async Order Processing Failed", err))
		}
	}()
}

func (s *Server) rejectWebhook(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn("webhook validation failed", "path", r.URL.Path, "error", err)
	s.fire(r.Context(), notify.ErrorEvent("Webhook Validation Failed", err))
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "error",
		"error":  err.Error(),
	})
}

// handleTest echoes an arbitrary payload to the notification channel.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = nil
	}

	s.log.Info("test webhook received")
	s.fire(r.Context(), notify.TestEvent(body))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"message":  "Test webhook processed",
		"received": body,
	})
}

func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "active",
		"endpoints": []string{
			"/order (recommended)",
			"/webhook",
			"/tradingview",
			"/test",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
	})
}
