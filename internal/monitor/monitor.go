package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"execution-core/internal/events"
)

// failureEvents are the engine topics worth waking an operator for.
var failureEvents = []events.Event{
	events.EventOrderRejected,
	events.EventRetriesExhausted,
	events.EventCancelRace,
}

// Watcher forwards failure-class engine events to an alert sink.
type Watcher struct {
	Bus  *events.Bus
	Sink AlertSink
	Log  *zap.Logger
}

// Start subscribes to the failure topics and runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	if w.Bus == nil || w.Sink == nil {
		if w.Log != nil {
			w.Log.Info("alert watcher not fully configured, skipping")
		}
		return
	}
	stream, unsub := w.Bus.SubscribeAll(failureEvents, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-stream:
				if !ok {
					return
				}
				if err := w.Sink.Send(formatAlert(env)); err != nil && w.Log != nil {
					w.Log.Warn("alert delivery failed", zap.Error(err))
				}
			}
		}
	}()
}

func formatAlert(env events.Envelope) string {
	return fmt.Sprintf("[%s] %s: %+v",
		time.Now().Format(time.RFC3339), env.Event, env.Payload)
}

// LogSink delivers alerts to the structured log.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Send(message string) error {
	s.Log.Warn("execution alert", zap.String("alert", message))
	return nil
}
