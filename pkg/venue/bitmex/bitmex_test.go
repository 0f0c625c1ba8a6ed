package bitmex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status string
		want   venue.StatusKind
	}{
		{"New", venue.StatusPending},
		{"PendingCancel", venue.StatusPending},
		{"PartiallyFilled", venue.StatusPartiallyFilled},
		{"Filled", venue.StatusFilled},
		{"Canceled", venue.StatusCancelled},
		{"Rejected", venue.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			st, err := mapStatus(orderResponse{
				OrdStatus: tt.status,
				CumQty:    decimal.NewFromInt(5),
				AvgPx:     decimal.NewFromInt(9500),
			})
			if err != nil {
				t.Fatalf("mapStatus: %v", err)
			}
			if st.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", st.Kind, tt.want)
			}
			if st.Notional.String() != "47500" {
				t.Errorf("Notional = %s, want 47500", st.Notional)
			}
		})
	}

	if _, err := mapStatus(orderResponse{OrdStatus: "Stopped"}); err == nil {
		t.Error("expected error for unknown ordStatus")
	}
}

func TestCancelOfFilledOrderIsAlreadyTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("method = %s", r.Method)
		}
		json.NewEncoder(w).Encode([]orderResponse{{OrderID: "abc", OrdStatus: "Filled"}})
	}))
	defer srv.Close()

	c := New(Config{Symbol: "XBTUSD", BaseURL: srv.URL})
	outcome, err := c.Cancel(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != venue.CancelAlreadyTerminal {
		t.Errorf("outcome = %v, want CancelAlreadyTerminal", outcome)
	}
}

func TestSubmitSendsSignatureHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range []string{"api-key", "api-expires", "api-signature"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		json.NewEncoder(w).Encode(orderResponse{OrderID: "abc", OrdStatus: "New"})
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APISecret: "s", Symbol: "XBTUSD", BaseURL: srv.URL})
	id, err := c.Submit(context.Background(), venue.OrderRequest{
		Action: venue.ActionBuy,
		Price:  decimal.NewFromInt(9000),
		Size:   decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "abc" {
		t.Errorf("id = %s, want abc", id)
	}
}
