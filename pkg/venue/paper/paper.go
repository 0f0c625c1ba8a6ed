// Package paper is an in-memory venue for rehearsing execution without
// touching a real exchange. Orders rest until the simulated market crosses
// their limit price; the mark price is driven by the embedding process.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"execution-core/pkg/venue"
)

// Config tunes the simulation. PartialFillRatio in (0,1) fills only that
// fraction of the order on the first cross, leaving the rest resting.
// Latency is added to every call to mimic venue round trips.
type Config struct {
	StartPrice       decimal.Decimal
	PartialFillRatio decimal.Decimal
	Latency          time.Duration
	RejectSubmits    bool // every submit fails, for failure-path rehearsal
	Seed             int64
}

type simOrder struct {
	req     venue.OrderRequest
	status  venue.OrderStatus
	crossed bool
}

type Client struct {
	cfg Config

	mu     sync.Mutex
	mark   decimal.Decimal
	orders map[string]*simOrder
	nextID int
	rng    *rand.Rand
}

func New(cfg Config) *Client {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mark := cfg.StartPrice
	if mark.IsZero() {
		mark = decimal.NewFromInt(100)
	}
	return &Client{
		cfg:    cfg,
		mark:   mark,
		orders: make(map[string]*simOrder),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (c *Client) Name() string { return "paper" }

// SetMarkPrice moves the simulated market.
func (c *Client) SetMarkPrice(p decimal.Decimal) {
	c.mu.Lock()
	c.mark = p
	c.mu.Unlock()
}

func (c *Client) Submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.RejectSubmits {
		return "", &venue.SendOrderError{Venue: c.Name(), Reason: "submissions disabled"}
	}
	c.nextID++
	id := fmt.Sprintf("paper-%d", c.nextID)
	c.orders[id] = &simOrder{
		req:    req,
		status: venue.OrderStatus{Kind: venue.StatusPending},
	}
	return id, nil
}

func (c *Client) Cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	if err := c.wait(ctx); err != nil {
		return venue.CancelAccepted, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ord, ok := c.orders[orderID]
	if !ok {
		return venue.CancelAccepted, fmt.Errorf("paper: unknown order %s", orderID)
	}
	c.settle(ord)
	if ord.status.Terminal() || ord.status.Kind == venue.StatusCancelled {
		return venue.CancelAlreadyTerminal, nil
	}
	ord.status.Kind = venue.StatusCancelled
	return venue.CancelAccepted, nil
}

func (c *Client) QueryStatus(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	if err := c.wait(ctx); err != nil {
		return venue.OrderStatus{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ord, ok := c.orders[orderID]
	if !ok {
		return venue.OrderStatus{}, fmt.Errorf("paper: unknown order %s", orderID)
	}
	c.settle(ord)
	return ord.status, nil
}

func (c *Client) LastPrice(ctx context.Context) (decimal.Decimal, error) {
	if err := c.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mark, nil
}

// settle fills a resting order whose limit the mark has crossed. The first
// cross fills PartialFillRatio of the size when configured, the second fills
// the remainder.
func (c *Client) settle(ord *simOrder) {
	if ord.status.Closed() {
		return
	}
	buy := ord.req.Action.Side() == venue.SideBuy
	crossed := (buy && c.mark.LessThanOrEqual(ord.req.Price)) ||
		(!buy && c.mark.GreaterThanOrEqual(ord.req.Price))
	if ord.req.Type == venue.OrderTypeMarket {
		crossed = true
	}
	if !crossed {
		return
	}

	fillQty := ord.req.Size
	ratio := c.cfg.PartialFillRatio
	if ratio.IsPositive() && ratio.LessThan(decimal.NewFromInt(1)) && !ord.crossed {
		fillQty = ord.req.Size.Mul(ratio)
		ord.crossed = true
		ord.status.Kind = venue.StatusPartiallyFilled
	} else {
		ord.status.Kind = venue.StatusFilled
	}

	px := ord.req.Price
	if ord.req.Type == venue.OrderTypeMarket {
		px = c.mark
	}
	prevNotional := ord.status.Notional
	prevQty := ord.status.FilledQty
	addQty := fillQty.Sub(prevQty)
	ord.status.FilledQty = fillQty
	ord.status.Notional = prevNotional.Add(addQty.Mul(px))
	if fillQty.IsPositive() {
		ord.status.AvgPrice = ord.status.Notional.Div(fillQty)
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.cfg.Latency <= 0 {
		return ctx.Err()
	}
	jitter := time.Duration(c.rng.Int63n(int64(c.cfg.Latency)/2 + 1))
	t := time.NewTimer(c.cfg.Latency + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
