// Package venue defines the capability set a trading venue adapter must
// satisfy and the normalized order vocabulary shared by all of them.
package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Gateway abstracts one trading venue for one instrument. Credentials, margin
// mode and leverage are fixed at construction; a Gateway handed to the engine
// is assumed ready to trade.
type Gateway interface {
	Name() string

	// Submit places the order and returns the venue order id. A venue-level
	// rejection surfaces as *SendOrderError; transport failures as plain errors.
	Submit(ctx context.Context, req OrderRequest) (string, error)

	// Cancel requests cancellation of the order. CancelAlreadyTerminal is not
	// an error condition; callers must re-query to learn what actually happened.
	Cancel(ctx context.Context, orderID string) (CancelOutcome, error)

	// QueryStatus returns the normalized state of the order.
	QueryStatus(ctx context.Context, orderID string) (OrderStatus, error)

	// LastPrice returns the venue's last traded price for the instrument.
	LastPrice(ctx context.Context) (decimal.Decimal, error)
}

// SendOrderError is a venue-level rejection at submission time. It is fatal
// to the execution attempt and never retried by the engine.
type SendOrderError struct {
	Venue  string
	Reason string
}

func (e *SendOrderError) Error() string {
	return fmt.Sprintf("%s: order rejected: %s", e.Venue, e.Reason)
}

// IsSendOrderError reports whether err is a submission rejection.
func IsSendOrderError(err error) bool {
	var soe *SendOrderError
	return errors.As(err, &soe)
}
