package mxc

import (
	"testing"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
)

func TestMapState(t *testing.T) {
	tests := []struct {
		state string
		want  venue.StatusKind
	}{
		{"NEW", venue.StatusPending},
		{"PARTIALLY_FILLED", venue.StatusPartiallyFilled},
		{"FILLED", venue.StatusFilled},
		{"CANCELED", venue.StatusCancelled},
		{"PARTIALLY_CANCELED", venue.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			st, err := mapState(orderInfo{
				State:        tt.state,
				DealQuantity: decimal.NewFromInt(4),
				DealAmount:   decimal.NewFromInt(100),
			})
			if err != nil {
				t.Fatalf("mapState: %v", err)
			}
			if st.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", st.Kind, tt.want)
			}
			if st.AvgPrice.String() != "25" {
				t.Errorf("AvgPrice = %s, want 25", st.AvgPrice)
			}
		})
	}

	if _, err := mapState(orderInfo{State: "FROZEN"}); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestTradeType(t *testing.T) {
	if tradeType(venue.ActionBuy) != "BID" || tradeType(venue.ActionBuyToCover) != "BID" {
		t.Error("buy-side actions must map to BID")
	}
	if tradeType(venue.ActionSell) != "ASK" || tradeType(venue.ActionSellShort) != "ASK" {
		t.Error("sell-side actions must map to ASK")
	}
}
