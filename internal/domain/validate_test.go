package domain

import (
	"errors"
	"testing"
)

func TestValidateAcceptsWellFormedRequests(t *testing.T) {
	cases := []OrderRequest{
		{Symbol: "005930", Action: "buy", Contracts: "1"},
		{Symbol: "005930", Action: "sell", Contracts: "10"},
		{Symbol: "005930", Action: "BUY", Contracts: "3"},
		{Symbol: "005930", Action: "Sell", Contracts: "2", Price: "71200"},
	}
	for _, req := range cases {
		if err := Validate(req); err != nil {
			t.Errorf("Validate(%+v) = %v, want nil", req, err)
		}
	}
}

func TestValidateMissingFields(t *testing.T) {
	cases := []struct {
		name string
		req  OrderRequest
	}{
		{"no symbol", OrderRequest{Action: "buy", Contracts: "1"}},
		{"no action", OrderRequest{Symbol: "005930", Contracts: "1"}},
		{"no contracts", OrderRequest{Symbol: "005930", Action: "buy"}},
		{"empty", OrderRequest{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.req)
			if err == nil {
				t.Fatal("Validate() = nil, want ValidationError")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestValidateRejectsBadActions(t *testing.T) {
	for _, action := range []string{"hold", "short", "buyy", "b"} {
		req := OrderRequest{Symbol: "005930", Action: action, Contracts: "1"}
		err := Validate(req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Validate(action=%q) = %v, want ValidationError", action, err)
		}
	}
}

func TestValidateRejectsBadContracts(t *testing.T) {
	for _, contracts := range []Numeric{"0", "-1", "abc", "1.5", ""} {
		req := OrderRequest{Symbol: "005930", Action: "buy", Contracts: contracts}
		err := Validate(req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Validate(contracts=%q) = %v, want ValidationError", contracts, err)
		}
	}
}
