package kis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"atd/internal/credstore"
	"atd/internal/domain"
)

// newBrokerServer fakes the brokerage API: token endpoint plus the trading
// and quotation endpoints the client talks to.
func newBrokerServer(t *testing.T, rejectOrders bool) *httptest.Server {
	t.Helper()
	var calls atomic.Int64
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth2/tokenP", tokenHandler(&calls, 3600))

	mux.HandleFunc("POST /uapi/domestic-stock/v1/trading/order-cash", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("tr_id"); got != "VTTC0011U" && got != "VTTC0012U" {
			t.Errorf("order tr_id = %q, want a sandbox order code", got)
		}
		if got := r.Header.Get("custtype"); got != "P" {
			t.Errorf("custtype = %q, want P", got)
		}
		var req orderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if req.CANO != "12345678" || req.ProductCode != "01" {
			t.Errorf("account split = %q/%q, want 12345678/01", req.CANO, req.ProductCode)
		}
		if req.Division != "01" || req.UnitPrice != "0" {
			t.Errorf("order division/price = %q/%q, want market order 01/0", req.Division, req.UnitPrice)
		}

		var resp orderResponse
		if rejectOrders {
			resp.RtCd = "1"
			resp.Msg1 = "주문가능금액을 초과했습니다"
		} else {
			resp.RtCd = rtSuccess
			resp.Msg1 = "주문 전송 완료 되었습니다"
			resp.Output.OrderNo = "0000117057"
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("GET /uapi/domestic-stock/v1/trading/inquire-balance", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("INQR_DVSN"); got != "02" {
			t.Errorf("INQR_DVSN = %q, want 02", got)
		}
		json.NewEncoder(w).Encode(balanceResponse{
			RtCd: rtSuccess,
			Output1: []balanceRow{{
				TotalAsset: "1000000",
				Deposit:    "500000",
				TotalBuy:   "200000",
				TotalEval:  "980000",
				ProfitLoss: "-20000",
				ProfitRate: "-2.00",
			}},
		})
	})

	mux.HandleFunc("GET /uapi/domestic-stock/v1/trading/inquire-account-balance", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(accountBalanceResponse{
			RtCd: rtSuccess,
			Output1: []positionRow{
				{Symbol: "005930", Name: "삼성전자", Quantity: "10", EvalAmount: "712000", ProfitLoss: "12000"},
			},
		})
	})

	mux.HandleFunc("GET /uapi/domestic-stock/v1/quotations/inquire-price", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("FID_COND_MRKT_DIV_CODE"); got != "J" {
			t.Errorf("FID_COND_MRKT_DIV_CODE = %q, want J", got)
		}
		var resp priceResponse
		resp.RtCd = rtSuccess
		resp.Output.CurrentPrice = "71200"
		resp.Output.ChangeRate = "1.25"
		resp.Output.Volume = "13542877"
		json.NewEncoder(w).Encode(resp)
	})

	return httptest.NewServer(mux)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPlaceOrderSuccess(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	result, err := c.PlaceOrder(context.Background(), "default", domain.OrderRequest{
		Account:   "default",
		Symbol:    "005930",
		Action:    "buy",
		Contracts: "1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !result.Success {
		t.Error("result.Success = false, want true")
	}
	if result.OrderID != "0000117057" {
		t.Errorf("result.OrderID = %q, want 0000117057", result.OrderID)
	}
	if result.Message == "" {
		t.Error("result.Message is empty, want upstream status text")
	}
}

func TestPlaceOrderUpstreamRejection(t *testing.T) {
	ts := newBrokerServer(t, true)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	_, err := c.PlaceOrder(context.Background(), "default", domain.OrderRequest{
		Account:   "default",
		Symbol:    "005930",
		Action:    "sell",
		Contracts: "2",
	})

	var oerr *domain.OrderError
	if !errors.As(err, &oerr) {
		t.Fatalf("PlaceOrder error = %v, want OrderError", err)
	}
	if oerr.Message != "주문가능금액을 초과했습니다" {
		t.Errorf("OrderError.Message = %q, want upstream message verbatim", oerr.Message)
	}
}

func TestPlaceOrderMissingCredential(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	_, err := c.PlaceOrder(context.Background(), "ghost", domain.OrderRequest{
		Symbol: "005930", Action: "buy", Contracts: "1",
	})

	var aerr *domain.AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("PlaceOrder error = %v, want AuthError", err)
	}
}

func TestBalanceMapsFirstRow(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	snap, err := c.Balance(context.Background(), "default")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}

	if snap.TotalAsset.String() != "1000000" {
		t.Errorf("TotalAsset = %s, want 1000000", snap.TotalAsset)
	}
	if snap.Deposit.String() != "500000" {
		t.Errorf("Deposit = %s, want 500000", snap.Deposit)
	}
	if snap.ProfitLoss.String() != "-20000" {
		t.Errorf("ProfitLoss = %s, want -20000", snap.ProfitLoss)
	}
	if snap.ProfitRate.String() != "-2" {
		t.Errorf("ProfitRate = %s, want -2", snap.ProfitRate)
	}
}

func TestBalanceMissingCredential(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	_, err := c.Balance(context.Background(), "ghost")

	var berr *domain.BalanceError
	if !errors.As(err, &berr) {
		t.Fatalf("Balance error = %v, want BalanceError", err)
	}
}

func TestPositions(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	positions, err := c.Positions(context.Background(), "default")
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(positions))
	}
	if positions[0].Symbol != "005930" || positions[0].Quantity.String() != "10" {
		t.Errorf("positions[0] = %+v, want 005930 x10", positions[0])
	}
}

func TestCurrentPrice(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	c := NewClient(newTestStore(t), ts.URL, ts.URL, discardLogger())
	quote, err := c.CurrentPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if quote.CurrentPrice.String() != "71200" {
		t.Errorf("CurrentPrice = %s, want 71200", quote.CurrentPrice)
	}
	if quote.Volume != 13542877 {
		t.Errorf("Volume = %d, want 13542877", quote.Volume)
	}
}

func TestCurrentPriceNoAccounts(t *testing.T) {
	ts := newBrokerServer(t, false)
	defer ts.Close()

	empty, err := credstore.NewFileStore(filepath.Join(t.TempDir(), "apikeys.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	c := NewClient(empty, ts.URL, ts.URL, discardLogger())
	_, err = c.CurrentPrice(context.Background(), "005930")

	var nerr *domain.NoAccountError
	if !errors.As(err, &nerr) {
		t.Fatalf("CurrentPrice error = %v, want NoAccountError", err)
	}
}

func TestOrderTrIDCombinations(t *testing.T) {
	cases := []struct {
		action  string
		sandbox bool
		want    string
	}{
		{"buy", false, "TTTC0011U"},
		{"sell", false, "TTTC0012U"},
		{"buy", true, "VTTC0011U"},
		{"sell", true, "VTTC0012U"},
		{"BUY", true, "VTTC0011U"},
	}
	for _, tc := range cases {
		if got := orderTrID(tc.action, tc.sandbox); got != tc.want {
			t.Errorf("orderTrID(%q, %v) = %q, want %q", tc.action, tc.sandbox, got, tc.want)
		}
	}
}
