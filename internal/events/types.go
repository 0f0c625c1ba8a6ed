package events

// Event enumerates the lifecycle topics emitted by the execution engine.
type Event string

const (
	EventOrderSubmitted    Event = "order.submitted"
	EventOrderFilled       Event = "order.filled"
	EventOrderCancelled    Event = "order.cancelled"
	EventOrderRejected     Event = "order.rejected"
	EventOrderChase        Event = "order.chase"
	EventCancelRace        Event = "order.cancel_race"
	EventRetriesExhausted  Event = "order.retries_exhausted"
	EventExecutionFinished Event = "execution.finished"
)
