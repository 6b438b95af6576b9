package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCredentialRecordAccountSplit(t *testing.T) {
	rec := CredentialRecord{
		AppKey:        "key",
		AppSecret:     "secret",
		AccountNumber: "1234567801",
		Sandbox:       true,
		CreatedAt:     time.Now(),
	}

	if got := rec.CANO(); got != "12345678" {
		t.Errorf("CANO() = %q, want %q", got, "12345678")
	}
	if got := rec.ProductCode(); got != "01" {
		t.Errorf("ProductCode() = %q, want %q", got, "01")
	}

	// Short account numbers must not panic.
	short := CredentialRecord{AccountNumber: "1234"}
	if got := short.CANO(); got != "1234" {
		t.Errorf("CANO() on short number = %q, want %q", got, "1234")
	}
	if got := short.ProductCode(); got != "" {
		t.Errorf("ProductCode() on short number = %q, want empty", got)
	}
}

func TestOrderRequestDecode(t *testing.T) {
	// The signal source sends contracts and price as either strings or bare
	// numbers depending on how the alert template was written.
	cases := []struct {
		name          string
		body          string
		wantContracts Numeric
		wantPrice     Numeric
	}{
		{
			name:          "string fields",
			body:          `{"symbol":"005930","action":"buy","contracts":"3","price":"71200"}`,
			wantContracts: "3",
			wantPrice:     "71200",
		},
		{
			name:          "numeric fields",
			body:          `{"symbol":"005930","action":"sell","contracts":2,"price":71200.5}`,
			wantContracts: "2",
			wantPrice:     "71200.5",
		},
		{
			name:          "price omitted",
			body:          `{"symbol":"005930","action":"buy","contracts":1}`,
			wantContracts: "1",
			wantPrice:     "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req OrderRequest
			if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if req.Contracts != tc.wantContracts {
				t.Errorf("Contracts = %q, want %q", req.Contracts, tc.wantContracts)
			}
			if req.Price != tc.wantPrice {
				t.Errorf("Price = %q, want %q", req.Price, tc.wantPrice)
			}
		})
	}
}

func TestOrderRequestNormalize(t *testing.T) {
	req := OrderRequest{Symbol: "005930", Action: "buy", Contracts: "1"}.Normalize()
	if req.Account != DefaultAccount {
		t.Errorf("Account after Normalize = %q, want %q", req.Account, DefaultAccount)
	}

	named := OrderRequest{Account: "retirement", Symbol: "005930", Action: "buy", Contracts: "1"}.Normalize()
	if named.Account != "retirement" {
		t.Errorf("Normalize overwrote explicit account: %q", named.Account)
	}
}
