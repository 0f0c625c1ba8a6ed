// Package bitcoke implements the venue gateway for BitCoke perpetuals.
package bitcoke

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
	"execution-core/pkg/venue/rest"
)

const defaultBaseURL = "https://api.bitcoke.com"

// Config holds credentials and the traded contract. Currency is the margin
// currency of the trading account ("BTC").
type Config struct {
	APIKey    string
	APISecret string
	Symbol    string // e.g. "XBTCUSD"
	Currency  string
	BaseURL   string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	rest *rest.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{cfg: cfg, rest: rest.New(cfg.BaseURL, cfg.Timeout)}
}

func (c *Client) Name() string { return "bitcoke" }

type apiResponse[T any] struct {
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	side := "Sell"
	if req.Action.Side() == venue.SideBuy {
		side = "Buy"
	}
	open := req.Action.Effect() == venue.EffectOpenLong || req.Action.Effect() == venue.EffectOpenShort

	q := url.Values{}
	q.Set("currency", c.cfg.Currency)
	q.Set("openPosition", strconv.FormatBool(open))
	q.Set("orderType", "Limit")
	q.Set("qty", req.Size.String())
	q.Set("side", side)
	q.Set("symbol", c.cfg.Symbol)
	if req.Type == venue.OrderTypeMarket {
		q.Set("orderType", "Market")
	} else {
		q.Set("price", req.Price.String())
	}

	var out apiResponse[string]
	if err := c.signedCall(ctx, http.MethodPost, "/trade/api/trade/enterOrder", q, &out); err != nil {
		return "", err
	}
	if out.Message != "OK" {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: out.Message}
	}
	return out.Result, nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	q := url.Values{}
	q.Set("orderId", orderID)

	var out apiResponse[string]
	if err := c.signedCall(ctx, http.MethodPost, "/trade/api/trade/cancelOrder", q, &out); err != nil {
		return venue.CancelAccepted, err
	}
	if out.Message != "OK" {
		return venue.CancelAlreadyTerminal, nil
	}
	return venue.CancelAccepted, nil
}

type orderInfo struct {
	OrdStatus string          `json:"ordStatus"`
	CumQty    decimal.Decimal `json:"cumQty"`
	AvgPx     decimal.Decimal `json:"avgPx"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	q := url.Values{}
	q.Set("orderId", orderID)

	var out apiResponse[orderInfo]
	if err := c.signedCall(ctx, http.MethodGet, "/trade/api/trade/queryOrderById", q, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	if out.Message != "OK" {
		return venue.OrderStatus{}, fmt.Errorf("bitcoke: order query failed: %s", out.Message)
	}
	return mapStatus(out.Result)
}

func mapStatus(info orderInfo) (venue.OrderStatus, error) {
	st := venue.OrderStatus{
		FilledQty: info.CumQty,
		AvgPrice:  info.AvgPx,
		Notional:  info.CumQty.Mul(info.AvgPx),
	}
	switch info.OrdStatus {
	case "NEW", "WAITING":
		st.Kind = venue.StatusPending
	case "PARTIALLY_FILLED":
		st.Kind = venue.StatusPartiallyFilled
	case "FILLED":
		st.Kind = venue.StatusFilled
	case "CANCELED":
		st.Kind = venue.StatusCancelled
	case "REJECTED":
		st.Kind = venue.StatusRejected
		st.Reason = "rejected by venue"
	default:
		return venue.OrderStatus{}, fmt.Errorf("bitcoke: unknown ordStatus %q", info.OrdStatus)
	}
	return st, nil
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbols", c.cfg.Symbol)

	var out apiResponse[map[string]decimal.Decimal]
	err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "/api/basic/lastPrice",
		Query:  q,
		Out:    &out,
	})
	if err != nil {
		return decimal.Zero, err
	}
	last, ok := out.Result[c.cfg.Symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("bitcoke: no last price for %s", c.cfg.Symbol)
	}
	return last, nil
}

// signedCall authenticates with apiKey/expires/signature headers where the
// signature is SHA-256 hex over secret + method + path + expires. The path in
// the signature excludes the /trade prefix. Parameters travel in the query
// string for both GET and POST.
func (c *Client) signedCall(ctx context.Context, method, path string, q url.Values, out any) error {
	expires := strconv.FormatInt(time.Now().UnixMilli()+1000, 10)
	signPath := path[len("/trade"):]

	sum := sha256.Sum256([]byte(c.cfg.APISecret + method + signPath + expires))

	return c.rest.Do(ctx, rest.Request{
		Method: method,
		Path:   path,
		Query:  q,
		Headers: map[string]string{
			"apiKey":    c.cfg.APIKey,
			"expires":   expires,
			"signature": hex.EncodeToString(sum[:]),
		},
		Out: out,
	})
}
