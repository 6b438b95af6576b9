package httpapi

import (
	"net/http"
	"time"

	"atd/internal/domain"
	"atd/internal/notify"
)

// keyView is a credential record with the secrets stripped.
type keyView struct {
	AccountNumber string    `json:"accountNumber"`
	Sandbox       bool      `json:"isSandbox"`
	CreatedAt     time.Time `json:"createdAt"`
}

type keyRequest struct {
	Account       string `json:"account"`
	AppKey        string `json:"appKey"`
	AppSecret     string `json:"appSecret"`
	AccountNumber string `json:"accountNumber"`
	Sandbox       bool   `json:"isSandbox"`
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.creds.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keys := make(map[string]keyView, len(accounts))
	for _, account := range accounts {
		rec, err := s.creds.Get(r.Context(), account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			continue
		}
		keys[account] = keyView{
			AccountNumber: rec.AccountNumber,
			Sandbox:       rec.Sandbox,
			CreatedAt:     rec.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "keys": keys})
}

func (s *Server) handleAddKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	if req.Account == "" || req.AppKey == "" || req.AppSecret == "" || req.AccountNumber == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	rec := domain.CredentialRecord{
		AppKey:        req.AppKey,
		AppSecret:     req.AppSecret,
		AccountNumber: req.AccountNumber,
		Sandbox:       req.Sandbox,
		CreatedAt:     time.Now(),
	}
	if err := s.creds.Upsert(r.Context(), req.Account, rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.tokens.Invalidate(req.Account)

	s.log.Info("credential added", "account", req.Account, "sandbox", req.Sandbox)
	s.fire(r.Context(), notify.KeyEvent("Added", req.Account, &rec))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "API key added successfully"})
}

func (s *Server) handleUpdateKey(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	existing, err := s.creds.Get(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	var req keyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	if req.AppKey == "" || req.AppSecret == "" || req.AccountNumber == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	rec := domain.CredentialRecord{
		AppKey:        req.AppKey,
		AppSecret:     req.AppSecret,
		AccountNumber: req.AccountNumber,
		Sandbox:       req.Sandbox,
		CreatedAt:     time.Now(),
	}
	if err := s.creds.Upsert(r.Context(), account, rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.tokens.Invalidate(account)

	s.log.Info("credential updated", "account", account, "sandbox", req.Sandbox)
	s.fire(r.Context(), notify.KeyEvent("Updated", account, &rec))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "API key updated successfully"})
}

func (s *Server) handleRemoveKey(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	existing, err := s.creds.Get(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	if err := s.creds.Remove(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.tokens.Invalidate(account)

	s.log.Info("credential removed", "account", account)
	s.fire(r.Context(), notify.KeyEvent("Removed", account, nil))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "API key removed successfully"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")

	balance, err := s.engine.Balance(r.Context(), account)
	if err != nil {
		s.log.Error("balance inquiry failed", "account", account, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "balance": balance})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.AllAccountsSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	price, err := s.engine.CurrentPrice(r.Context(), symbol)
	if err != nil {
		s.log.Error("price lookup failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "price": price})
}

// handleManualOrder places one order synchronously, unlike the webhook path.
func (s *Server) handleManualOrder(w http.ResponseWriter, r *http.Request) {
	var order domain.OrderRequest
	if err := readJSON(r, &order); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON payload")
		return
	}

	result, err := s.engine.ProcessOrder(r.Context(), order)
	if err != nil {
		s.log.Error("manual order failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

// handleBulkOrders places a batch of orders strictly in input order.
func (s *Server) handleBulkOrders(w http.ResponseWriter, r *http.Request) {
	var orders []domain.OrderRequest
	if err := readJSON(r, &orders); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	if len(orders) == 0 {
		writeError(w, http.StatusBadRequest, "empty order list")
		return
	}

	entries := s.engine.ProcessBulk(r.Context(), orders)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "orders": entries})
}
