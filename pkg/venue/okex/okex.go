// Package okex implements the venue gateway for OKEx v3 futures.
package okex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
	"execution-core/pkg/venue/rest"
)

const defaultBaseURL = "https://www.okex.com"

// Config carries credentials and the traded instrument. Credentials are
// verified by the venue on the first signed call, not at construction.
type Config struct {
	APIKey       string
	APISecret    string
	Passphrase   string
	InstrumentID string
	BaseURL      string
	Timeout      time.Duration
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

func (c *Client) Name() string { return "okex" }

// orderType maps an action to the venue's numeric order type: 1 opens long,
// 2 opens short, 3 closes long, 4 closes short.
func orderType(a venue.Action) (string, error) {
	switch a {
	case venue.ActionBuy:
		return "1", nil
	case venue.ActionSellShort:
		return "2", nil
	case venue.ActionSell:
		return "3", nil
	case venue.ActionBuyToCover:
		return "4", nil
	}
	return "", fmt.Errorf("okex: unsupported action %q", a)
}

type placeResponse struct {
	OrderID      string `json:"order_id"`
	Result       bool   `json:"result"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	typ, err := orderType(req.Action)
	if err != nil {
		return "", err
	}
	body := map[string]string{
		"instrument_id": c.cfg.InstrumentID,
		"type":          typ,
		"price":         req.Price.String(),
		"size":          req.Size.String(),
		"order_type":    "0",
	}
	if req.ClientID != "" {
		body["client_oid"] = req.ClientID
	}

	var out placeResponse
	err = c.signedCall(ctx, http.MethodPost, "/api/futures/v3/order", body, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			return "", &venue.SendOrderError{Venue: c.Name(), Reason: apiErr.Body}
		}
		return "", err
	}
	if out.ErrorCode != "" && out.ErrorCode != "0" {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: out.ErrorMessage}
	}
	return out.OrderID, nil
}

type cancelResponse struct {
	Result    bool   `json:"result"`
	ErrorCode string `json:"error_code"`
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	path := fmt.Sprintf("/api/futures/v3/cancel_order/%s/%s", c.cfg.InstrumentID, orderID)
	var out cancelResponse
	err := c.signedCall(ctx, http.MethodPost, path, map[string]string{}, &out)
	if err != nil {
		// The venue answers 400 when the order already reached a final
		// state; the follow-up status query settles what happened.
		if apiErr, ok := asAPIError(err); ok && apiErr.Status < 500 {
			return venue.CancelAlreadyTerminal, nil
		}
		return venue.CancelAccepted, err
	}
	if out.ErrorCode != "" && out.ErrorCode != "0" {
		return venue.CancelAlreadyTerminal, nil
	}
	return venue.CancelAccepted, nil
}

type orderInfo struct {
	State     json.Number `json:"state"`
	FilledQty string      `json:"filled_qty"`
	PriceAvg  string      `json:"price_avg"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	path := fmt.Sprintf("/api/futures/v3/orders/%s/%s", c.cfg.InstrumentID, orderID)
	var out orderInfo
	if err := c.signedCall(ctx, http.MethodGet, path, nil, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	return mapState(out)
}

// mapState translates the venue state code: -2 failed, -1 cancelled,
// 0 pending, 1 partially filled, 2 filled, 3 submitting, 4 cancelling.
func mapState(info orderInfo) (venue.OrderStatus, error) {
	filled, err := decimal.NewFromString(zeroIfEmpty(info.FilledQty))
	if err != nil {
		return venue.OrderStatus{}, fmt.Errorf("okex: bad filled_qty %q", info.FilledQty)
	}
	avg, err := decimal.NewFromString(zeroIfEmpty(info.PriceAvg))
	if err != nil {
		return venue.OrderStatus{}, fmt.Errorf("okex: bad price_avg %q", info.PriceAvg)
	}
	st := venue.OrderStatus{FilledQty: filled, AvgPrice: avg, Notional: filled.Mul(avg)}

	switch info.State.String() {
	case "-2":
		st.Kind = venue.StatusRejected
		st.Reason = "order failed"
	case "-1":
		st.Kind = venue.StatusCancelled
	case "0", "3", "4":
		st.Kind = venue.StatusPending
	case "1":
		st.Kind = venue.StatusPartiallyFilled
	case "2":
		st.Kind = venue.StatusFilled
	default:
		return venue.OrderStatus{}, fmt.Errorf("okex: unknown state %q", info.State)
	}
	return st, nil
}

type ticker struct {
	Last string `json:"last"`
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	path := fmt.Sprintf("/api/futures/v3/instruments/%s/ticker", c.cfg.InstrumentID)
	var out ticker
	err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: path, Out: &out})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(out.Last)
}

func (c *Client) signedCall(ctx context.Context, method, path string, body, out any) error {
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = string(raw)
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(ts + method + path + payload))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req := rest.Request{
		Method: method,
		Path:   path,
		Headers: map[string]string{
			"OK-ACCESS-KEY":        c.cfg.APIKey,
			"OK-ACCESS-SIGN":       sign,
			"OK-ACCESS-TIMESTAMP":  ts,
			"OK-ACCESS-PASSPHRASE": c.cfg.Passphrase,
		},
		Out: out,
	}
	if body != nil {
		req.Body = json.RawMessage(payload)
	}
	return c.rest.Do(ctx, req)
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func asAPIError(err error) (*rest.APIError, bool) {
	var apiErr *rest.APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
