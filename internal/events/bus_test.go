package events

import (
	"testing"
	"time"
)

func TestSubscribePublish(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventOrderFilled, 4)
	defer unsub()

	b.Publish(EventOrderFilled, "payload-1")
	b.Publish(EventOrderSubmitted, "other-topic")

	select {
	case got := <-ch:
		if got != "payload-1" {
			t.Errorf("payload = %v, want payload-1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case got := <-ch:
		t.Errorf("unexpected cross-topic delivery: %v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventOrderCancelled, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(EventOrderCancelled, "late")
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBus()
	_, unsub := b.Subscribe(EventOrderChase, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(EventOrderChase, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestSubscribeAll(t *testing.T) {
	b := NewBus()
	stream, unsub := b.SubscribeAll([]Event{EventOrderFilled, EventCancelRace}, 8)

	b.Publish(EventOrderFilled, "fill")
	b.Publish(EventCancelRace, "race")
	b.Publish(EventOrderSubmitted, "not subscribed")

	seen := make(map[Event]any)
	for i := 0; i < 2; i++ {
		select {
		case env := <-stream:
			seen[env.Event] = env.Payload
		case <-time.After(time.Second):
			t.Fatal("missing envelope")
		}
	}
	if seen[EventOrderFilled] != "fill" || seen[EventCancelRace] != "race" {
		t.Errorf("envelopes = %v", seen)
	}

	unsub()
	if _, ok := <-stream; ok {
		t.Error("aggregate stream still open after unsubscribe")
	}
}
