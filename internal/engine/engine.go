// Package engine implements the order resubmission state machine: submit,
// inspect, and per policy cancel and chase the market until the order reaches
// a terminal state or the policy says to stop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/pkg/venue"
)

// ErrRetriesExhausted is returned when the reissue chain hits the attempt cap
// or the cumulative deadline before reaching a terminal status. The Report
// returned alongside carries the last observed status.
var ErrRetriesExhausted = errors.New("engine: reissue attempts exhausted")

var errInvalidRequest = errors.New("engine: invalid order request")

// Report describes the outcome of one Execute call. Exactly one Report is
// produced per call regardless of how many venue orders the chase created.
type Report struct {
	Venue    string               `json:"venue"`
	Action   venue.Action         `json:"action"`
	Effect   venue.PositionEffect `json:"effect"`
	Symbol   string               `json:"symbol"`
	OrderID  string               `json:"order_id"`
	OrderIDs []string             `json:"order_ids"`
	Status   venue.OrderStatus    `json:"status"`
	Request  venue.OrderRequest   `json:"request"`
	Attempts int                  `json:"attempts"`
	Elapsed  time.Duration        `json:"elapsed"`
}

// Engine drives one gateway under one policy. Safe for concurrent Execute
// calls; the policy is read-only and all chain state is call-local.
type Engine struct {
	Gateway venue.Gateway
	Policy  Policy
	Log     *zap.Logger
	Bus     *events.Bus
	Metrics *monitor.ExecutionMetrics

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an engine for the given gateway and policy.
func New(gw venue.Gateway, p Policy) *Engine {
	return &Engine{
		Gateway: gw,
		Policy:  p,
		Log:     zap.NewNop(),
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute submits the request and keeps it economically live per the policy:
// chase the market when it drifts away, bound how long the order may rest,
// and never return while a cancel is unresolved. The returned Report carries
// the terminal (or, with no policy enabled, the last observed) status.
func (e *Engine) Execute(ctx context.Context, req venue.OrderRequest) (Report, error) {
	rep := Report{
		Venue:   e.Gateway.Name(),
		Action:  req.Action,
		Effect:  req.Action.Effect(),
		Symbol:  req.Symbol,
		Request: req,
	}
	if err := validateRequest(req); err != nil {
		return rep, err
	}
	if err := e.Policy.Validate(); err != nil {
		return rep, err
	}

	deadlineSet := false
	if e.Policy.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Policy.Deadline)
		defer cancel()
		deadlineSet = true
	}

	start := e.now()
	err := e.run(ctx, req, &rep)
	rep.Elapsed = e.now().Sub(start)
	if e.Metrics != nil {
		e.Metrics.ExecuteLatency.RecordDuration(rep.Elapsed)
		if err != nil && !errors.Is(err, ErrRetriesExhausted) && !venue.IsSendOrderError(err) {
			e.Metrics.IncErrors()
		}
	}
	if err != nil && deadlineSet && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: deadline elapsed after %d attempts", ErrRetriesExhausted, rep.Attempts)
		e.noteExhausted(rep)
	}
	if err == nil {
		e.publish(events.EventExecutionFinished, rep)
	}
	return rep, err
}

func (e *Engine) run(ctx context.Context, req venue.OrderRequest, rep *Report) error {
	base := req
	for {
		if rep.Attempts >= e.Policy.maxAttempts() {
			e.noteExhausted(*rep)
			return fmt.Errorf("%w: %d attempts on %s", ErrRetriesExhausted, rep.Attempts, rep.Venue)
		}
		rep.Attempts++
		rep.Request = req

		id, err := e.submit(ctx, req)
		if err != nil {
			if venue.IsSendOrderError(err) {
				rep.Status = venue.OrderStatus{Kind: venue.StatusRejected, Reason: err.Error()}
				e.noteRejected(*rep)
				return err
			}
			return fmt.Errorf("submit: %w", err)
		}
		rep.OrderID = id
		rep.OrderIDs = append(rep.OrderIDs, id)
		e.publish(events.EventOrderSubmitted, *rep)
		e.Log.Info("order submitted",
			zap.String("venue", rep.Venue),
			zap.String("order_id", id),
			zap.String("action", string(req.Action)),
			zap.String("price", req.Price.String()),
			zap.String("size", req.Size.String()),
			zap.Int("attempt", rep.Attempts))

		st, err := e.query(ctx, id)
		if err != nil {
			return fmt.Errorf("query status: %w", err)
		}
		rep.Status = st
		if st.Terminal() {
			e.noteTerminal(*rep)
			return nil
		}

		// Order is resting (pending or partially filled). Policies apply in
		// fixed order: price check, time check, auto cancel.
		if e.Policy.PriceCancellation {
			last, err := e.lastPrice(ctx)
			if err != nil {
				return fmt.Errorf("last price: %w", err)
			}
			if priceTriggered(req.Action.Side(), req.Price, last, e.Policy.PriceCancellationAmplitude) {
				next, resolved, err := e.cancelForReissue(ctx, rep, req, base, last)
				if err != nil {
					return err
				}
				if resolved {
					return nil
				}
				if next != nil {
					req = *next
					continue
				}
				// Cancel neither chased nor settled the order (it is still
				// resting at the venue); fall through to the next policy.
			}
		}

		if e.Policy.TimeCancellation {
			if err := e.sleep(ctx, e.Policy.TimeCancellationWait); err != nil {
				return err
			}
			st, err = e.query(ctx, rep.OrderID)
			if err != nil {
				return fmt.Errorf("query status: %w", err)
			}
			rep.Status = st
			if st.Terminal() {
				e.noteTerminal(*rep)
				return nil
			}
			last, err := e.lastPrice(ctx)
			if err != nil {
				return fmt.Errorf("last price: %w", err)
			}
			next, resolved, err := e.cancelForReissue(ctx, rep, req, base, last)
			if err != nil {
				return err
			}
			if resolved {
				return nil
			}
			if next != nil {
				req = *next
				continue
			}
		}

		if e.Policy.AutomaticCancellation {
			if err := e.cancelAndSettle(ctx, rep); err != nil {
				return err
			}
			return nil
		}

		// No policy resolved the order: hand the resting status back as-is.
		return nil
	}
}

// cancelForReissue cancels the current order and decides what comes next.
// Returns the reissued request when the chase continues, resolved=true when
// the order settled terminally while cancelling (the fill won the race, or
// nothing was left to reissue), and (nil, false) when the order is somehow
// still resting and the caller should fall through to the next policy.
func (e *Engine) cancelForReissue(ctx context.Context, rep *Report, req, base venue.OrderRequest, last decimal.Decimal) (*venue.OrderRequest, bool, error) {
	outcome, err := e.cancel(ctx, rep.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("cancel: %w", err)
	}

	// A cancel is never trusted on its own: the fill may have landed first.
	st, err := e.query(ctx, rep.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("query status after cancel: %w", err)
	}
	rep.Status = st

	switch st.Kind {
	case venue.StatusFilled:
		if outcome == venue.CancelAlreadyTerminal {
			e.publish(events.EventCancelRace, *rep)
			if e.Metrics != nil {
				e.Metrics.IncCancelRaces()
			}
			e.Log.Info("cancel lost race to fill",
				zap.String("venue", rep.Venue),
				zap.String("order_id", rep.OrderID))
		}
		e.noteTerminal(*rep)
		return nil, true, nil

	case venue.StatusRejected:
		e.noteTerminal(*rep)
		return nil, true, nil

	case venue.StatusCancelled:
		remaining := req.Size.Sub(st.FilledQty)
		if remaining.Sign() <= 0 {
			// Everything filled before the cancel landed; the cancelled
			// status already carries the full fill.
			e.noteTerminal(*rep)
			return nil, true, nil
		}
		next := req
		next.Price = chasePrice(req.Action.Side(), last, e.Policy.ReissueOffset)
		next.Size = remaining
		next.ClientID = reissueClientID(base.ClientID, len(rep.OrderIDs)+1)
		e.publish(events.EventOrderChase, *rep)
		if e.Metrics != nil {
			e.Metrics.IncChases()
		}
		e.Log.Info("chasing market",
			zap.String("venue", rep.Venue),
			zap.String("cancelled_order_id", rep.OrderID),
			zap.String("reissue_price", next.Price.String()),
			zap.String("reissue_size", next.Size.String()))
		return &next, false, nil
	}

	// Still pending or partially filled after the cancel round-trip; the
	// venue has not applied the cancel yet. Do not loop here, let the next
	// policy stage (or the caller) deal with it.
	return nil, false, nil
}

// cancelAndSettle unconditionally cancels what is left and settles on
// whatever state the re-query reports. Never reissues.
func (e *Engine) cancelAndSettle(ctx context.Context, rep *Report) error {
	if _, err := e.cancel(ctx, rep.OrderID); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	st, err := e.query(ctx, rep.OrderID)
	if err != nil {
		return fmt.Errorf("query status after cancel: %w", err)
	}
	rep.Status = st
	if st.Closed() {
		e.noteTerminal(*rep)
	}
	return nil
}

func (e *Engine) submit(ctx context.Context, req venue.OrderRequest) (string, error) {
	start := e.now()
	id, err := e.Gateway.Submit(ctx, req)
	e.recordVenueLatency(start)
	if err == nil && e.Metrics != nil {
		e.Metrics.IncSubmits()
	}
	return id, err
}

func (e *Engine) query(ctx context.Context, orderID string) (venue.OrderStatus, error) {
	start := e.now()
	st, err := e.Gateway.QueryStatus(ctx, orderID)
	e.recordVenueLatency(start)
	return st, err
}

func (e *Engine) cancel(ctx context.Context, orderID string) (venue.CancelOutcome, error) {
	start := e.now()
	outcome, err := e.Gateway.Cancel(ctx, orderID)
	e.recordVenueLatency(start)
	if err == nil && e.Metrics != nil {
		e.Metrics.IncCancels()
	}
	return outcome, err
}

func (e *Engine) lastPrice(ctx context.Context) (decimal.Decimal, error) {
	start := e.now()
	p, err := e.Gateway.LastPrice(ctx)
	e.recordVenueLatency(start)
	return p, err
}

func (e *Engine) recordVenueLatency(start time.Time) {
	if e.Metrics != nil {
		e.Metrics.VenueLatency.RecordDuration(e.now().Sub(start))
	}
}

func (e *Engine) noteTerminal(rep Report) {
	switch rep.Status.Kind {
	case venue.StatusFilled:
		e.publish(events.EventOrderFilled, rep)
		if e.Metrics != nil {
			e.Metrics.IncFills()
		}
		e.Log.Info("order filled",
			zap.String("venue", rep.Venue),
			zap.String("order_id", rep.OrderID),
			zap.String("avg_price", rep.Status.AvgPrice.String()),
			zap.String("filled_qty", rep.Status.FilledQty.String()),
			zap.Int("attempts", rep.Attempts))
	case venue.StatusRejected:
		e.noteRejected(rep)
	case venue.StatusCancelled:
		e.publish(events.EventOrderCancelled, rep)
		e.Log.Info("order cancelled",
			zap.String("venue", rep.Venue),
			zap.String("order_id", rep.OrderID),
			zap.String("filled_qty", rep.Status.FilledQty.String()))
	}
}

func (e *Engine) noteRejected(rep Report) {
	e.publish(events.EventOrderRejected, rep)
	if e.Metrics != nil {
		e.Metrics.IncRejections()
	}
	e.Log.Warn("order rejected",
		zap.String("venue", rep.Venue),
		zap.String("order_id", rep.OrderID),
		zap.String("reason", rep.Status.Reason))
}

func (e *Engine) noteExhausted(rep Report) {
	e.publish(events.EventRetriesExhausted, rep)
	if e.Metrics != nil {
		e.Metrics.IncExhausted()
	}
	e.Log.Warn("reissue chain exhausted",
		zap.String("venue", rep.Venue),
		zap.Int("attempts", rep.Attempts),
		zap.String("last_status", rep.Status.Kind.String()))
}

func (e *Engine) publish(ev events.Event, payload any) {
	if e.Bus != nil {
		e.Bus.Publish(ev, payload)
	}
}

func validateRequest(req venue.OrderRequest) error {
	if !req.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", errInvalidRequest, req.Action)
	}
	if req.Size.Sign() <= 0 {
		return fmt.Errorf("%w: size must be positive", errInvalidRequest)
	}
	if req.Type != venue.OrderTypeMarket && req.Price.Sign() <= 0 {
		return fmt.Errorf("%w: price must be positive", errInvalidRequest)
	}
	return nil
}

var one = decimal.NewFromInt(1)

// priceTriggered reports whether the market ran away from the resting order:
// for buys the last price at or above price*(1+amplitude), for sells at or
// below price*(1-amplitude).
func priceTriggered(side venue.Side, price, last, amplitude decimal.Decimal) bool {
	if side == venue.SideBuy {
		return last.GreaterThanOrEqual(price.Mul(one.Add(amplitude)))
	}
	return last.LessThanOrEqual(price.Mul(one.Sub(amplitude)))
}

// chasePrice repositions toward the market: buys bid above the last price by
// the offset, sells offer below it.
func chasePrice(side venue.Side, last, offset decimal.Decimal) decimal.Decimal {
	if side == venue.SideBuy {
		return last.Mul(one.Add(offset))
	}
	return last.Mul(one.Sub(offset))
}

func reissueClientID(baseID string, attempt int) string {
	if baseID == "" {
		return ""
	}
	return fmt.Sprintf("%s-r%d", baseID, attempt)
}
