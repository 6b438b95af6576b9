// Package kis is the REST client for the Korea Investment Securities open
// API: per-account bearer-token lifecycle, market order placement, balance
// and position inquiries, and public quote lookups.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"atd/internal/credstore"
	"atd/internal/domain"
)

// Client is the broker gateway. Every trading and query call resolves a
// bearer token through the TokenManager first.
type Client struct {
	creds      credstore.Store
	tokens     *TokenManager
	liveURL    string
	sandboxURL string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a broker gateway reading credentials from creds and
// talking to the given live/sandbox base URLs.
func NewClient(creds credstore.Store, liveURL, sandboxURL string, log *slog.Logger) *Client {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}
	return &Client{
		creds:      creds,
		tokens:     NewTokenManager(creds, liveURL, sandboxURL, httpClient),
		liveURL:    liveURL,
		sandboxURL: sandboxURL,
		httpClient: httpClient,
		log:        log.With("module", "kis"),
	}
}

// Tokens exposes the token manager, so credential mutations can invalidate
// cached tokens.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

func (c *Client) baseFor(rec *domain.CredentialRecord) string {
	if rec.Sandbox {
		return c.sandboxURL
	}
	return c.liveURL
}

// orderTrID resolves the transaction-type code from the action and the
// account's sandbox flag.
func orderTrID(action string, sandbox bool) string {
	buy := strings.EqualFold(action, domain.ActionBuy)
	switch {
	case sandbox && buy:
		return trOrderBuySandbox
	case sandbox:
		return trOrderSellSandbox
	case buy:
		return trOrderBuyLive
	default:
		return trOrderSellLive
	}
}

// PlaceOrder submits a market order for the account. On upstream rejection it
// returns an OrderError carrying the brokerage's message verbatim; the order
// is never resubmitted.
func (c *Client) PlaceOrder(ctx context.Context, account string, order domain.OrderRequest) (domain.OrderResult, error) {
	var result domain.OrderResult

	rec, err := c.creds.Get(ctx, account)
	if err != nil {
		return result, &domain.AuthError{Account: account, Err: err}
	}
	if rec == nil {
		return result, &domain.AuthError{Account: account, Err: errors.New("credential not found")}
	}

	token, err := c.tokens.Token(ctx, account)
	if err != nil {
		return result, err
	}

	trID := orderTrID(order.Action, rec.Sandbox)
	body := orderRequest{
		CANO:        rec.CANO(),
		ProductCode: rec.ProductCode(),
		Symbol:      order.Symbol,
		Division:    "01", // Market order; price field stays zero.
		Quantity:    string(order.Contracts),
		UnitPrice:   "0",
	}

	c.log.Info("placing order",
		"account", account,
		"symbol", order.Symbol,
		"action", order.Action,
		"contracts", order.Contracts,
		"tr_id", trID,
	)

	var parsed orderResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseFor(rec)+"/uapi/domestic-stock/v1/trading/order-cash",
		headersFor(rec, token, trID, true), nil, body, &parsed); err != nil {
		return result, err
	}

	if parsed.RtCd != rtSuccess {
		return result, &domain.OrderError{Code: parsed.RtCd, Message: parsed.Msg1}
	}

	result = domain.OrderResult{
		Success: true,
		OrderID: parsed.Output.OrderNo,
		Message: parsed.Msg1,
	}
	c.log.Info("order accepted", "account", account, "orderId", result.OrderID)
	return result, nil
}

// Balance queries the account's balance with the fixed retail-equities
// parameter set and maps the first result row into a snapshot.
func (c *Client) Balance(ctx context.Context, account string) (domain.BalanceSnapshot, error) {
	var snap domain.BalanceSnapshot

	rec, err := c.creds.Get(ctx, account)
	if err != nil {
		return snap, &domain.BalanceError{Account: account, Err: err}
	}
	if rec == nil {
		return snap, &domain.BalanceError{Account: account, Err: errors.New("credential not found")}
	}

	token, err := c.tokens.Token(ctx, account)
	if err != nil {
		return snap, &domain.BalanceError{Account: account, Err: err}
	}

	trID := trBalanceLive
	if rec.Sandbox {
		trID = trBalanceSandbox
	}

	query := url.Values{
		"CANO":                  {rec.CANO()},
		"ACNT_PRDT_CD":          {rec.ProductCode()},
		"AFHR_FLPR_YN":          {"N"},
		"OFL_YN":                {""},
		"INQR_DVSN":             {"02"},
		"UNPR_DVSN":             {"01"},
		"FUND_STTL_ICLD_YN":     {"Y"},
		"FNCG_AMT_AUTO_RDPT_YN": {"N"},
		"PRCS_DVSN":             {"01"},
		"CTX_AREA_FK100":        {""},
		"CTX_AREA_NK100":        {""},
	}

	var parsed balanceResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseFor(rec)+"/uapi/domestic-stock/v1/trading/inquire-balance",
		headersFor(rec, token, trID, false), query, nil, &parsed); err != nil {
		return snap, &domain.BalanceError{Account: account, Err: err}
	}

	if parsed.RtCd != rtSuccess {
		return snap, &domain.BalanceError{Account: account, Err: errors.New(parsed.Msg1)}
	}
	if len(parsed.Output1) == 0 {
		return snap, &domain.BalanceError{Account: account, Err: errors.New("balance response has no rows")}
	}

	row := parsed.Output1[0]
	snap = domain.BalanceSnapshot{
		TotalAsset: dec(row.TotalAsset),
		Deposit:    dec(row.Deposit),
		TotalBuy:   dec(row.TotalBuy),
		TotalEval:  dec(row.TotalEval),
		ProfitLoss: dec(row.ProfitLoss),
		ProfitRate: dec(row.ProfitRate),
	}
	return snap, nil
}

// Positions queries the account-balance endpoint and returns the open
// position rows.
func (c *Client) Positions(ctx context.Context, account string) ([]domain.Position, error) {
	rec, err := c.creds.Get(ctx, account)
	if err != nil {
		return nil, &domain.BalanceError{Account: account, Err: err}
	}
	if rec == nil {
		return nil, &domain.BalanceError{Account: account, Err: errors.New("credential not found")}
	}

	token, err := c.tokens.Token(ctx, account)
	if err != nil {
		return nil, &domain.BalanceError{Account: account, Err: err}
	}

	query := url.Values{
		"CANO":               {rec.CANO()},
		"ACNT_PRDT_CD":       {rec.ProductCode()},
		"INQR_DVSN_1":        {""},
		"BSPR_BF_DT_APLY_YN": {"Y"},
	}

	var parsed accountBalanceResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseFor(rec)+"/uapi/domestic-stock/v1/trading/inquire-account-balance",
		headersFor(rec, token, trAccountBalance, false), query, nil, &parsed); err != nil {
		return nil, &domain.BalanceError{Account: account, Err: err}
	}

	if parsed.RtCd != rtSuccess {
		return nil, &domain.BalanceError{Account: account, Err: errors.New(parsed.Msg1)}
	}

	positions := make([]domain.Position, 0, len(parsed.Output1))
	for _, row := range parsed.Output1 {
		positions = append(positions, domain.Position{
			Symbol:     row.Symbol,
			Name:       row.Name,
			Quantity:   dec(row.Quantity),
			EvalAmount: dec(row.EvalAmount),
			ProfitLoss: dec(row.ProfitLoss),
		})
	}
	return positions, nil
}

// CurrentPrice looks up a public quote. The lookup still needs credentials,
// so the first configured account's are borrowed purely for authentication.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	var quote domain.PriceQuote

	accounts, err := c.creds.Accounts(ctx)
	if err != nil {
		return quote, err
	}
	if len(accounts) == 0 {
		return quote, &domain.NoAccountError{}
	}

	account := accounts[0]
	rec, err := c.creds.Get(ctx, account)
	if err != nil {
		return quote, err
	}
	if rec == nil {
		return quote, &domain.NoAccountError{}
	}

	token, err := c.tokens.Token(ctx, account)
	if err != nil {
		return quote, err
	}

	query := url.Values{
		"FID_COND_MRKT_DIV_CODE": {"J"},
		"FID_INPUT_ISCD":         {symbol},
	}

	var parsed priceResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseFor(rec)+"/uapi/domestic-stock/v1/quotations/inquire-price",
		headersFor(rec, token, trCurrentPrice, false), query, nil, &parsed); err != nil {
		return quote, err
	}

	if parsed.RtCd != rtSuccess {
		return quote, fmt.Errorf("price lookup for %s failed: %s", symbol, parsed.Msg1)
	}

	volume, _ := strconv.ParseInt(parsed.Output.Volume, 10, 64)
	quote = domain.PriceQuote{
		CurrentPrice: dec(parsed.Output.CurrentPrice),
		ChangeRate:   dec(parsed.Output.ChangeRate),
		Volume:       volume,
	}
	return quote, nil
}

// headersFor builds the authentication headers every trading/query call
// carries. custType marks a retail customer and is only sent on order
// placement.
func headersFor(rec *domain.CredentialRecord, token, trID string, custType bool) map[string]string {
	h := map[string]string{
		"Content-Type":  "application/json; charset=utf-8",
		"Authorization": "Bearer " + token,
		"appkey":        rec.AppKey,
		"appsecret":     rec.AppSecret,
		"tr_id":         trID,
	}
	if custType {
		h["custtype"] = "P"
	}
	return h
}

// doJSON performs one request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, headers map[string]string, query url.Values, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	return json.Unmarshal(data, out)
}

// dec parses an upstream numeric string, treating blanks and garbage as zero.
// The brokerage sends figures as strings and occasionally omits them.
func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
