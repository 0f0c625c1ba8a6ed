// Package huobi implements the venue gateway for Huobi coin-margined futures.
package huobi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
	"execution-core/pkg/venue/rest"
)

const defaultBaseURL = "https://api.hbdm.com"

// Config identifies one contract. Symbol is the underlying ("BTC"),
// ContractType selects the expiry ("this_week", "next_week", "quarter"),
// MarketSymbol is the ticker alias ("BTC_CQ").
type Config struct {
	APIKey       string
	APISecret    string
	Symbol       string
	ContractType string
	MarketSymbol string
	LeverRate    int
	BaseURL      string
	Timeout      time.Duration
}

type Client struct {
	cfg  Config
	host string
	rest *rest.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.LeverRate == 0 {
		cfg.LeverRate = 10
	}
	host := cfg.BaseURL
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Client{cfg: cfg, host: host, rest: rest.New(cfg.BaseURL, cfg.Timeout)}
}

func (c *Client) Name() string { return "huobi" }

// direction/offset per action: open long buys, close long sells, open short
// sells, close short buys.
func directionOffset(a venue.Action) (string, string, error) {
	switch a {
	case venue.ActionBuy:
		return "buy", "open", nil
	case venue.ActionSell:
		return "sell", "close", nil
	case venue.ActionSellShort:
		return "sell", "open", nil
	case venue.ActionBuyToCover:
		return "buy", "close", nil
	}
	return "", "", fmt.Errorf("huobi: unsupported action %q", a)
}

type apiResponse[T any] struct {
	Status  string `json:"status"`
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
	Data    T      `json:"data"`
}

type placeData struct {
	OrderIDStr string `json:"order_id_str"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	direction, offset, err := directionOffset(req.Action)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"symbol":           c.cfg.Symbol,
		"contract_type":    c.cfg.ContractType,
		"price":            req.Price,
		"volume":           req.Size,
		"direction":        direction,
		"offset":           offset,
		"lever_rate":       c.cfg.LeverRate,
		"order_price_type": "limit",
	}
	if req.Type == venue.OrderTypeMarket {
		body["order_price_type"] = "opponent"
		delete(body, "price")
	}

	var out apiResponse[placeData]
	if err := c.signedPost(ctx, "/api/v1/contract_order", body, &out); err != nil {
		return "", err
	}
	if out.Status != "ok" {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: out.ErrMsg}
	}
	return out.Data.OrderIDStr, nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	body := map[string]any{"order_id": orderID, "symbol": c.cfg.Symbol}
	var out apiResponse[struct {
		Errors []struct {
			ErrMsg string `json:"err_msg"`
		} `json:"errors"`
	}]
	if err := c.signedPost(ctx, "/api/v1/contract_cancel", body, &out); err != nil {
		return venue.CancelAccepted, err
	}
	if out.Status != "ok" || len(out.Data.Errors) > 0 {
		return venue.CancelAlreadyTerminal, nil
	}
	return venue.CancelAccepted, nil
}

type orderInfo struct {
	Status        int             `json:"status"`
	TradeVolume   decimal.Decimal `json:"trade_volume"`
	TradeAvgPrice decimal.Decimal `json:"trade_avg_price"`
	TradeTurnover decimal.Decimal `json:"trade_turnover"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	body := map[string]any{"order_id": orderID, "symbol": c.cfg.Symbol}
	var out apiResponse[[]orderInfo]
	if err := c.signedPost(ctx, "/api/v1/contract_order_info", body, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	if out.Status != "ok" || len(out.Data) == 0 {
		return venue.OrderStatus{}, fmt.Errorf("huobi: order info failed: %s", out.ErrMsg)
	}
	return mapStatus(out.Data[0])
}

// mapStatus translates the venue status code: 1/2 preparing, 3 submitted,
// 4 partially filled, 5 partially filled then cancelled, 6 filled,
// 7 cancelled, 11 cancelling.
func mapStatus(info orderInfo) (venue.OrderStatus, error) {
	st := venue.OrderStatus{
		FilledQty: info.TradeVolume,
		AvgPrice:  info.TradeAvgPrice,
		Notional:  info.TradeTurnover,
	}

	switch info.Status {
	case 1, 2, 3, 11:
		st.Kind = venue.StatusPending
	case 4:
		st.Kind = venue.StatusPartiallyFilled
	case 5, 7:
		st.Kind = venue.StatusCancelled
	case 6:
		st.Kind = venue.StatusFilled
	default:
		return venue.OrderStatus{}, fmt.Errorf("huobi: unknown status %d", info.Status)
	}
	return st, nil
}

type ticker struct {
	Tick struct {
		Close decimal.Decimal `json:"close"`
	} `json:"tick"`
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.MarketSymbol)

	var out ticker
	err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "/market/detail/merged",
		Query:  q,
		Out:    &out,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return out.Tick.Close, nil
}

// signedPost signs the auth query parameters with the venue's v2 scheme:
// base64 HMAC-SHA256 over "POST\nhost\npath\nsorted-query". The JSON body
// is not part of the signature.
func (c *Client) signedPost(ctx context.Context, path string, body, out any) error {
	q := url.Values{}
	q.Set("AccessKeyId", c.cfg.APIKey)
	q.Set("SignatureMethod", "HmacSHA256")
	q.Set("SignatureVersion", "2")
	q.Set("Timestamp", time.Now().UTC().Format("2006-01-02T15:04:05"))

	payload := http.MethodPost + "\n" + c.host + "\n" + path + "\n" + q.Encode()
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(payload))
	q.Set("Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	return c.rest.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   path,
		Query:  q,
		Body:   body,
		Out:    out,
	})
}
