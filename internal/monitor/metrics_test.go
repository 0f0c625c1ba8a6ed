package monitor

import (
	"context"
	"testing"
	"time"

	"execution-core/internal/events"
)

func TestCounters(t *testing.T) {
	m := NewExecutionMetrics()
	m.IncSubmits()
	m.IncSubmits()
	m.IncFills()
	m.IncCancels()
	m.IncChases()
	m.IncCancelRaces()
	m.IncRejections()
	m.IncExhausted()
	m.IncErrors()

	snap := m.GetSnapshot()
	if snap.Submits != 2 {
		t.Errorf("Submits = %d, want 2", snap.Submits)
	}
	for name, got := range map[string]uint64{
		"fills":        snap.Fills,
		"cancels":      snap.Cancels,
		"chases":       snap.Chases,
		"cancel_races": snap.CancelRaces,
		"rejections":   snap.Rejections,
		"exhausted":    snap.Exhausted,
		"errors":       snap.Errors,
	} {
		if got != 1 {
			t.Errorf("%s = %d, want 1", name, got)
		}
	}
}

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(10)
	for _, ms := range []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} {
		h.Record(ms)
	}

	stats := h.Stats()
	if stats.Count != 10 {
		t.Fatalf("Count = %d, want 10", stats.Count)
	}
	if stats.Min != 1 || stats.Max != 10 {
		t.Errorf("Min/Max = %v/%v, want 1/10", stats.Min, stats.Max)
	}
	if stats.Avg != 5.5 {
		t.Errorf("Avg = %v, want 5.5", stats.Avg)
	}
	if stats.P50 != 5 {
		t.Errorf("P50 = %v, want 5", stats.P50)
	}

	// Window slides: the oldest sample drops out.
	h.Record(11)
	stats = h.Stats()
	if stats.Min != 2 || stats.Max != 11 {
		t.Errorf("after slide Min/Max = %v/%v, want 2/11", stats.Min, stats.Max)
	}
}

func TestLatencyHistogramEmpty(t *testing.T) {
	h := NewLatencyHistogram(5)
	if stats := h.Stats(); stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
}

type captureSink struct {
	ch chan string
}

func (s captureSink) Send(msg string) error {
	s.ch <- msg
	return nil
}

func TestWatcherForwardsFailures(t *testing.T) {
	bus := events.NewBus()
	sink := captureSink{ch: make(chan string, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := Watcher{Bus: bus, Sink: sink}
	w.Start(ctx)

	bus.Publish(events.EventRetriesExhausted, "chain gave up")
	bus.Publish(events.EventOrderFilled, "not a failure topic")

	select {
	case msg := <-sink.ch:
		if msg == "" {
			t.Error("empty alert message")
		}
	case <-time.After(time.Second):
		t.Fatal("no alert delivered")
	}

	select {
	case msg := <-sink.ch:
		t.Errorf("unexpected alert for non-failure topic: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
