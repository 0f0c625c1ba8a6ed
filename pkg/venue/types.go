package venue

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Action is the trade intent as strategies express it. Buy/Sell operate a long
// position, SellShort/BuyToCover a short one. The venue only ever sees the
// resulting Side; the position effect is reporting metadata.
type Action string

const (
	ActionBuy        Action = "BUY"
	ActionSell       Action = "SELL"
	ActionSellShort  Action = "SELLSHORT"
	ActionBuyToCover Action = "BUYTOCOVER"
)

// Side denotes the order-book side an action maps to.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Side maps the four actions onto the two order-book sides.
func (a Action) Side() Side {
	switch a {
	case ActionSell, ActionSellShort:
		return SideSell
	default:
		return SideBuy
	}
}

// PositionEffect tags what an action does to the position. Mirrors the
// open-long/close-long/open-short/close-short vocabulary of derivative venues.
type PositionEffect string

const (
	EffectOpenLong   PositionEffect = "OPEN_LONG"
	EffectCloseLong  PositionEffect = "CLOSE_LONG"
	EffectOpenShort  PositionEffect = "OPEN_SHORT"
	EffectCloseShort PositionEffect = "CLOSE_SHORT"
)

// Effect returns the position effect implied by the action.
func (a Action) Effect() PositionEffect {
	switch a {
	case ActionBuy:
		return EffectOpenLong
	case ActionSell:
		return EffectCloseLong
	case ActionSellShort:
		return EffectOpenShort
	default:
		return EffectCloseShort
	}
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionSellShort, ActionBuyToCover:
		return true
	}
	return false
}

// OrderType denotes basic execution types.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
)

// OrderRequest captures one order intent to be sent to a venue. Requests are
// immutable; the engine builds a fresh request for every reissued order.
type OrderRequest struct {
	Symbol      string          `json:"symbol"`
	Action      Action          `json:"action"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	Type        OrderType       `json:"type"`
	TimeInForce TimeInForce     `json:"time_in_force,omitempty"`
	ClientID    string          `json:"client_id,omitempty"`
}

// StatusKind is the normalized five-way order state every adapter reduces its
// venue vocabulary into.
type StatusKind int

const (
	StatusPending StatusKind = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (k StatusKind) String() string {
	switch k {
	case StatusPending:
		return "PENDING"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// MarshalJSON encodes the kind as its string name.
func (k StatusKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its string name.
func (k *StatusKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, kind := range []StatusKind{StatusPending, StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusRejected} {
		if kind.String() == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown status kind %q", s)
}

// OrderStatus is the normalized view of one venue order. FilledQty is
// non-decreasing across successive queries of the same order.
type OrderStatus struct {
	Kind      StatusKind      `json:"kind"`
	FilledQty decimal.Decimal `json:"filled_qty"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	Notional  decimal.Decimal `json:"notional"`
	Reason    string          `json:"reason,omitempty"` // populated for StatusRejected
}

// Terminal reports whether no further transition will be observed. Cancelled
// is terminal for the order instance but may still trigger a reissue upstream.
func (s OrderStatus) Terminal() bool {
	return s.Kind == StatusFilled || s.Kind == StatusRejected
}

// Closed reports whether the venue will not fill this order any further.
func (s OrderStatus) Closed() bool {
	return s.Terminal() || s.Kind == StatusCancelled
}

// CancelOutcome models the result of a cancel request as data. The race
// between a cancel and a concurrent fill is detected by the venue and
// reported here, never by exception flow.
type CancelOutcome int

const (
	// CancelAccepted means the venue took the cancel request. The order must
	// still be re-queried: a partial fill may have landed first.
	CancelAccepted CancelOutcome = iota
	// CancelAlreadyTerminal means the venue refused because the order already
	// reached a terminal state, typically a fill that won the race.
	CancelAlreadyTerminal
)
