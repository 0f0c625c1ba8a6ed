// Package binance implements the venue gateway for Binance spot.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
	"execution-core/pkg/venue/rest"
)

const defaultBaseURL = "https://api.binance.com"

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

func (c *Client) Name() string { return "binance" }

type placeResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)
	q.Set("side", string(req.Action.Side()))
	if req.Type == venue.OrderTypeMarket {
		q.Set("type", "MARKET")
	} else {
		q.Set("type", "LIMIT")
		tif := req.TimeInForce
		if tif == "" {
			tif = venue.TIFGTC
		}
		q.Set("timeInForce", string(tif))
		q.Set("price", req.Price.String())
	}
	q.Set("quantity", req.Size.String())
	if req.ClientID != "" {
		q.Set("newClientOrderId", req.ClientID)
	}

	var out placeResponse
	err := c.signedCall(ctx, http.MethodPost, "/api/v3/order", q, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.Status < 500 {
			return "", &venue.SendOrderError{Venue: c.Name(), Reason: apiErr.Body}
		}
		return "", err
	}
	return strconv.FormatInt(out.OrderID, 10), nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)
	q.Set("orderId", orderID)

	err := c.signedCall(ctx, http.MethodDelete, "/api/v3/order", q, nil)
	if err != nil {
		// -2011 means the cancel lost the race with a fill or an earlier
		// cancel; the caller requeries either way.
		if apiErr, ok := asAPIError(err); ok && strings.Contains(apiErr.Body, "-2011") {
			return venue.CancelAlreadyTerminal, nil
		}
		return venue.CancelAccepted, err
	}
	return venue.CancelAccepted, nil
}

type orderInfo struct {
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
	CumQuoteQty string `json:"cummulativeQuoteQty"`
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)
	q.Set("orderId", orderID)

	var out orderInfo
	if err := c.signedCall(ctx, http.MethodGet, "/api/v3/order", q, &out); err != nil {
		return venue.OrderStatus{}, err
	}
	return mapStatus(out)
}

func mapStatus(info orderInfo) (venue.OrderStatus, error) {
	filled, err := decimal.NewFromString(zeroIfEmpty(info.ExecutedQty))
	if err != nil {
		return venue.OrderStatus{}, fmt.Errorf("binance: bad executedQty %q", info.ExecutedQty)
	}
	quote, err := decimal.NewFromString(zeroIfEmpty(info.CumQuoteQty))
	if err != nil {
		return venue.OrderStatus{}, fmt.Errorf("binance: bad cummulativeQuoteQty %q", info.CumQuoteQty)
	}
	st := venue.OrderStatus{FilledQty: filled, Notional: quote}
	if filled.IsPositive() {
		st.AvgPrice = quote.Div(filled)
	}

	switch info.Status {
	case "NEW":
		st.Kind = venue.StatusPending
	case "PARTIALLY_FILLED":
		st.Kind = venue.StatusPartiallyFilled
	case "FILLED":
		st.Kind = venue.StatusFilled
	case "CANCELED", "PENDING_CANCEL":
		st.Kind = venue.StatusCancelled
	case "EXPIRED":
		st.Kind = venue.StatusCancelled
		st.Reason = "expired"
	case "REJECTED":
		st.Kind = venue.StatusRejected
		st.Reason = "rejected by venue"
	default:
		return venue.OrderStatus{}, fmt.Errorf("binance: unknown status %q", info.Status)
	}
	return st, nil
}

type tickerPrice struct {
	Price string `json:"price"`
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)

	var out tickerPrice
	err := c.rest.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "/api/v3/ticker/price",
		Query:  q,
		Out:    &out,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(out.Price)
}

// signedCall appends timestamp and an HMAC-SHA256 hex signature over the
// query string, per the venue's signed-endpoint scheme.
func (c *Client) signedCall(ctx context.Context, method, path string, q url.Values, out any) error {
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	q.Set("recvWindow", "5000")

	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(q.Encode()))
	q.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	return c.rest.Do(ctx, rest.Request{
		Method:  method,
		Path:    path,
		Query:   q,
		Headers: map[string]string{"X-MBX-APIKEY": c.cfg.APIKey},
		Out:     out,
	})
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
