package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxAttempts bounds a chase chain when the policy does not set one.
// The price keeps repositioning toward the market on every reissue, so long
// chains indicate a venue that cannot keep up, not progress.
const DefaultMaxAttempts = 10

// Policy is the read-only resubmission configuration. It is loaded once at
// startup and passed to the engine explicitly; the engine never mutates it.
type Policy struct {
	// PriceCancellation cancels and reissues when the market runs away from
	// the resting order by more than PriceCancellationAmplitude (fractional).
	PriceCancellation          bool
	PriceCancellationAmplitude decimal.Decimal

	// TimeCancellation waits TimeCancellationWait after the status check and
	// cancels/reissues anything still resting.
	TimeCancellation     bool
	TimeCancellationWait time.Duration

	// AutomaticCancellation unconditionally cancels whatever is left once the
	// other policies have passed. Cancel what's left, don't chase.
	AutomaticCancellation bool

	// ReissueOffset is the fractional price chase increment applied to the
	// market price when reissuing (buys above, sells below).
	ReissueOffset decimal.Decimal

	// MaxAttempts caps the submit/reissue chain; zero means DefaultMaxAttempts.
	MaxAttempts int

	// Deadline bounds one Execute call end to end; zero means no deadline.
	Deadline time.Duration
}

var (
	errNegativeAmplitude = errors.New("policy: price_cancellation_amplitude must not be negative")
	errNegativeOffset    = errors.New("policy: reissue_order offset must not be negative")
	errNegativeWait      = errors.New("policy: time_cancellation wait must not be negative")
)

// Validate checks the policy for values that would make the engine misbehave.
func (p Policy) Validate() error {
	if p.PriceCancellationAmplitude.IsNegative() {
		return errNegativeAmplitude
	}
	if p.ReissueOffset.IsNegative() {
		return errNegativeOffset
	}
	if p.TimeCancellationWait < 0 {
		return errNegativeWait
	}
	return nil
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return DefaultMaxAttempts
}
