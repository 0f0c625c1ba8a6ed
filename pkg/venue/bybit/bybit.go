// Package bybit implements the venue gateway for Bybit inverse perpetuals.
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
	"execution-core/pkg/venue/rest"
)

const defaultBaseURL = "https://api.bybit.com"

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

func (c *Client) Name() string { return "bybit" }

func sideOf(a venue.Action) string {
	if a.Side() == venue.SideBuy {
		return "Buy"
	}
	return "Sell"
}

type apiResponse[T any] struct {
	RetCode int    `json:"ret_code"`
	RetMsg  string `json:"ret_msg"`
	Result  T      `json:"result"`
}

type placeResult struct {
	OrderID string `json:"order_id"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	params := map[string]string{
		"side":          sideOf(req.Action),
		"symbol":        c.cfg.Symbol,
		"order_type":    "Limit",
		"qty":           req.Size.String(),
		"price":         req.Price.String(),
		"time_in_force": "GoodTillCancel",
	}
	if req.Type == venue.OrderTypeMarket {
		params["order_type"] = "Market"
		delete(params, "price")
	}
	if req.ClientID != "" {
		params["order_link_id"] = req.ClientID
	}

	var out apiResponse[placeResult]
	if err := c.signedCall(ctx, http.MethodPost, "/v2/private/order/create", params, &out); err != nil {
		return "", err
	}
	if out.RetCode != 0 {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: out.RetMsg}
	}
	return out.Result.OrderID, nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	params := map[string]string{"symbol": c.cfg.Symbol, "order_id": orderID}
	var out apiResponse[placeResult]
	if err := c.signedCall(ctx, http.MethodPost, "/v2/private/order/cancel", params, &out); err != nil {
		return venue.CancelAccepted, err
	}
	if out.RetCode != 0 {
		return venue.CancelAlreadyTerminal, nil
	}
	return venue.CancelAccepted, nil
}

type orderResult struct {
	OrderStatus  string          `json:"order_status"`
	CumExecQty   decimal.Decimal `json:"cum_exec_qty"`
	CumExecValue decimal.Decimal `json:"cum_exec_value"`
	Price        decimal.Decimal `json:"price"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	params := map[string]string{"symbol": c.cfg.Symbol, "order_id": orderID}
	var out apiResponse[orderResult]
	if err := c.signedCall(ctx, http.MethodGet, "/v2/private/order", params, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	if out.RetCode != 0 {
		return venue.OrderStatus{}, fmt.Errorf("bybit: order query failed: %s", out.RetMsg)
	}
	return mapStatus(out.Result)
}

func mapStatus(res orderResult) (venue.OrderStatus, error) {
	st := venue.OrderStatus{FilledQty: res.CumExecQty, Notional: res.CumExecValue}
	if res.CumExecQty.IsPositive() && res.CumExecValue.IsPositive() {
		// Inverse contracts report exec value in coin, so the average entry
		// is qty over value.
		st.AvgPrice = res.CumExecQty.Div(res.CumExecValue)
	}

	switch res.OrderStatus {
	case "Created", "New", "PendingCancel":
		st.Kind = venue.StatusPending
	case "PartiallyFilled":
		st.Kind = venue.StatusPartiallyFilled
	case "Filled":
		st.Kind = venue.StatusFilled
	case "Cancelled":
		st.Kind = venue.StatusCancelled
	case "Rejected":
		st.Kind = venue.StatusRejected
		st.Reason = "rejected by venue"
	default:
		return venue.OrderStatus{}, fmt.Errorf("bybit: unknown order_status %q", res.OrderStatus)
	}
	return st, nil
}

type tickers struct {
	RetCode int `json:"ret_code"`
	Result  []struct {
		LastPrice decimal.Decimal `json:"last_price"`
	} `json:"result"`
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)

	var out tickers
	err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "/v2/public/tickers",
		Query:  q,
		Out:    &out,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if out.RetCode != 0 || len(out.Result) == 0 {
		return decimal.Zero, fmt.Errorf("bybit: empty ticker for %s", c.cfg.Symbol)
	}
	return out.Result[0].LastPrice, nil
}

// signedCall adds api_key and timestamp, then signs the sorted k=v pairs
// with HMAC-SHA256 hex. GETs carry the params in the query, POSTs in a
// JSON body.
func (c *Client) signedCall(ctx context.Context, method, path string, params map[string]string, out any) error {
	params["api_key"] = c.cfg.APIKey
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	params["sign"] = hex.EncodeToString(mac.Sum(nil))

	req := rest.Request{Method: method, Path: path, Out: out}
	if method == http.MethodGet {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		req.Query = q
	} else {
		req.Body = params
	}
	return c.rest.Do(ctx, req)
}
