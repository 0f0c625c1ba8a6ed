// Package mxc implements the venue gateway for MXC spot.
package mxc

import (
	"context"
	"crypto/hmac"
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

const defaultBaseURL = "https://www.mxc.com"

type Config struct {
	APIKey    string
	APISecret string
	Symbol    string // underscore pair, e.g. "BTC_USDT"
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

func (c *Client) Name() string { return "mxc" }

func tradeType(a venue.Action) string {
	if a.Side() == venue.SideBuy {
		return "BID"
	}
	return "ASK"
}

type apiResponse[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	body := map[string]string{
		"symbol":     c.cfg.Symbol,
		"price":      req.Price.String(),
		"quantity":   req.Size.String(),
		"trade_type": tradeType(req.Action),
		"order_type": "LIMIT_ORDER",
	}
	if req.ClientID != "" {
		body["client_order_id"] = req.ClientID
	}

	var out apiResponse[string]
	if err := c.signedCall(ctx, http.MethodPost, "/open/api/v2/order/place", nil, body, &out); err != nil {
		return "", err
	}
	if out.Code != 200 {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: out.Msg}
	}
	return out.Data, nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	q := url.Values{}
	q.Set("order_ids", orderID)

	var out apiResponse[map[string]string]
	if err := c.signedCall(ctx, http.MethodDelete, "/open/api/v2/order/cancel", q, nil, &out); err != nil {
		return venue.CancelAccepted, err
	}
	if out.Code != 200 {
		return venue.CancelAlreadyTerminal, nil
	}
	return venue.CancelAccepted, nil
}

type orderInfo struct {
	State        string          `json:"state"`
	DealQuantity decimal.Decimal `json:"deal_quantity"`
	DealAmount   decimal.Decimal `json:"deal_amount"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	q := url.Values{}
	q.Set("order_ids", orderID)

	var out apiResponse[[]orderInfo]
	if err := c.signedCall(ctx, http.MethodGet, "/open/api/v2/order/query", q, nil, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	if out.Code != 200 || len(out.Data) == 0 {
		return venue.OrderStatus{}, fmt.Errorf("mxc: order query failed: %s", out.Msg)
	}
	return mapState(out.Data[0])
}

func mapState(info orderInfo) (venue.OrderStatus, error) {
	st := venue.OrderStatus{FilledQty: info.DealQuantity, Notional: info.DealAmount}
	if info.DealQuantity.IsPositive() {
		st.AvgPrice = info.DealAmount.Div(info.DealQuantity)
	}

	switch info.State {
	case "NEW":
		st.Kind = venue.StatusPending
	case "PARTIALLY_FILLED":
		st.Kind = venue.StatusPartiallyFilled
	case "FILLED":
		st.Kind = venue.StatusFilled
	case "CANCELED", "PARTIALLY_CANCELED":
		st.Kind = venue.StatusCancelled
	default:
		return venue.OrderStatus{}, fmt.Errorf("mxc: unknown state %q", info.State)
	}
	return st, nil
}

type tickerData struct {
	Last decimal.Decimal `json:"last"`
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)

	var out apiResponse[[]tickerData]
	err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "/open/api/v2/market/ticker",
		Query:  q,
		Out:    &out,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if out.Code != 200 || len(out.Data) == 0 {
		return decimal.Zero, fmt.Errorf("mxc: empty ticker for %s", c.cfg.Symbol)
	}
	return out.Data[0].Last, nil
}

// signedCall sends ApiKey/Request-Time/Signature headers; the signature is
// HMAC-SHA256 hex over key + request time + encoded query.
func (c *Client) signedCall(ctx context.Context, method, path string, q url.Values, body, out any) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	var encoded string
	if q != nil {
		encoded = q.Encode()
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(c.cfg.APIKey + now + encoded))

	return c.rest.Do(ctx, rest.Request{
		Method: method,
		Path:   path,
		Query:  q,
		Headers: map[string]string{
			"ApiKey":       c.cfg.APIKey,
			"Request-Time": now,
			"Signature":    hex.EncodeToString(mac.Sum(nil)),
		},
		Body: body,
		Out:  out,
	})
}
