// Package bitmex implements the venue gateway for BitMEX perpetual swaps.
package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
	"execution-core/pkg/venue/rest"
)

const defaultBaseURL = "https://www.bitmex.com"

type Config struct {
	APIKey    string
	APISecret string
	Symbol    string
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

func (c *Client) Name() string { return "bitmex" }

func sideOf(a venue.Action) string {
	if a.Side() == venue.SideBuy {
		return "Buy"
	}
	return "Sell"
}

type orderResponse struct {
	OrderID   string          `json:"orderID"`
	OrdStatus string          `json:"ordStatus"`
	CumQty    decimal.Decimal `json:"cumQty"`
	AvgPx     decimal.Decimal `json:"avgPx"`
	Text      string          `json:"text"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	body := map[string]any{
		"symbol":   c.cfg.Symbol,
		"side":     sideOf(req.Action),
		"orderQty": req.Size,
		"ordType":  "Limit",
		"price":    req.Price,
	}
	if req.Type == venue.OrderTypeMarket {
		body["ordType"] = "Market"
		delete(body, "price")
	}
	if req.ClientID != "" {
		body["clOrdID"] = req.ClientID
	}

	var out orderResponse
	err := c.signedCall(ctx, http.MethodPost, "/api/v1/order", nil, body, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.Status < 500 {
			return "", &venue.SendOrderError{Venue: c.Name(), Reason: apiErr.Body}
		}
		return "", err
	}
	if out.OrdStatus == "Rejected" {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: out.Text}
	}
	return out.OrderID, nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	q := url.Values{}
	q.Set("orderID", orderID)

	var out []orderResponse
	err := c.signedCall(ctx, http.MethodDelete, "/api/v1/order", q, nil, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.Status < 500 {
			return venue.CancelAlreadyTerminal, nil
		}
		return venue.CancelAccepted, err
	}
	// The venue echoes the order; an already closed one comes back with its
	// final ordStatus instead of Canceled.
	if len(out) > 0 && out[0].OrdStatus != "Canceled" && out[0].OrdStatus != "PendingCancel" {
		return venue.CancelAlreadyTerminal, nil
	}
	return venue.CancelAccepted, nil
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	filter, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return venue.OrderStatus{}, err
	}
	q := url.Values{}
	q.Set("filter", string(filter))
	q.Set("count", "1")

	var out []orderResponse
	if err := c.signedCall(ctx, http.MethodGet, "/api/v1/order", q, nil, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	if len(out) == 0 {
		return venue.OrderStatus{}, fmt.Errorf("bitmex: order %s not found", orderID)
	}
	return mapStatus(out[0])
}

func mapStatus(res orderResponse) (venue.OrderStatus, error) {
	st := venue.OrderStatus{
		FilledQty: res.CumQty,
		AvgPrice:  res.AvgPx,
		Notional:  res.CumQty.Mul(res.AvgPx),
	}
	switch res.OrdStatus {
	case "New", "PendingCancel":
		st.Kind = venue.StatusPending
	case "PartiallyFilled":
		st.Kind = venue.StatusPartiallyFilled
	case "Filled":
		st.Kind = venue.StatusFilled
	case "Canceled":
		st.Kind = venue.StatusCancelled
	case "Rejected":
		st.Kind = venue.StatusRejected
		st.Reason = res.Text
	default:
		return venue.OrderStatus{}, fmt.Errorf("bitmex: unknown ordStatus %q", res.OrdStatus)
	}
	return st, nil
}

type instrument struct {
	LastPrice decimal.Decimal `json:"lastPrice"`
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)
	q.Set("count", "1")
	q.Set("reverse", "true")

	var out []instrument
	err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/instrument",
		Query:  q,
		Out:    &out,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if len(out) == 0 {
		return decimal.Zero, fmt.Errorf("bitmex: no instrument for %s", c.cfg.Symbol)
	}
	return out[0].LastPrice, nil
}

// signedCall signs verb + path(+query) + expires + body with HMAC-SHA256 hex
// and sends the api-key/api-expires/api-signature headers.
func (c *Client) signedCall(ctx context.Context, method, path string, q url.Values, body, out any) error {
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = string(raw)
	}
	signPath := path
	if len(q) > 0 {
		signPath += "?" + q.Encode()
	}
	expires := strconv.FormatInt(time.Now().Add(5*time.Second).Unix(), 10)

	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(method + signPath + expires + payload))
	sign := hex.EncodeToString(mac.Sum(nil))

	req := rest.Request{
		Method: method,
		Path:   path,
		Query:  q,
		Headers: map[string]string{
			"api-key":       c.cfg.APIKey,
			"api-expires":   expires,
			"api-signature": sign,
		},
		Out: out,
	}
	if body != nil {
		req.Body = json.RawMessage(payload)
	}
	return c.rest.Do(ctx, req)
}

func asAPIError(err error) (*rest.APIError, bool) {
	var apiErr *rest.APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
