package bitcoke

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
		{"NEW", venue.StatusPending},
		{"WAITING", venue.StatusPending},
		{"PARTIALLY_FILLED", venue.StatusPartiallyFilled},
		{"FILLED", venue.StatusFilled},
		{"CANCELED", venue.StatusCancelled},
		{"REJECTED", venue.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			st, err := mapStatus(orderInfo{
				OrdStatus: tt.status,
				CumQty:    decimal.NewFromInt(3),
				AvgPx:     decimal.NewFromInt(50),
			})
			if err != nil {
				t.Fatalf("mapStatus: %v", err)
			}
			if st.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", st.Kind, tt.want)
			}
		})
	}

	if _, err := mapStatus(orderInfo{OrdStatus: "QUEUED"}); err == nil {
		t.Error("expected error for unknown ordStatus")
	}
}

func TestSubmitMapsSideAndOpenPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("side") != "Sell" {
			t.Errorf("side = %s, want Sell", q.Get("side"))
		}
		if q.Get("openPosition") != "false" {
			t.Errorf("openPosition = %s, want false", q.Get("openPosition"))
		}
		for _, h := range []string{"apiKey", "expires", "signature"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"message": "OK", "result": "ord-9"})
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", APISecret: "s", Symbol: "XBTCUSD", Currency: "BTC", BaseURL: srv.URL})
	id, err := c.Submit(context.Background(), venue.OrderRequest{
		Action: venue.ActionSell,
		Price:  decimal.NewFromInt(9000),
		Size:   decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "ord-9" {
		t.Errorf("id = %s, want ord-9", id)
	}
}

func TestLastPriceKeyedBySymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": "OK",
			"result":  map[string]float64{"XBTCUSD": 9123.5},
		})
	}))
	defer srv.Close()

	c := New(Config{Symbol: "XBTCUSD", BaseURL: srv.URL})
	last, err := c.LastPrice(context.Background())
	if err != nil {
		t.Fatalf("LastPrice: %v", err)
	}
	if last.String() != "9123.5" {
		t.Errorf("last = %s, want 9123.5", last)
	}
}
