package bus

import (
	"errors"
	"testing"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got any
	_, err := b.Subscribe("test.event", func(e Event) error {
		got = e.Data()
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("test.event", "tester", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got != 123 {
		t.Fatalf("handler not called with payload, got %v", got)
	}
}

func TestPublishAggregatesHandlerErrors(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	if _, err := b.Subscribe("x", func(e Event) error { return handlerErr }); err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := b.Publish(NewEvent("x", "src", nil)); !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("x", func(e Event) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err = b.Publish(NewEvent("x", "src", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err = sub.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active after cancel")
	}
	if err = b.Publish(NewEvent("x", "src", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	// Double cancel is safe.
	if err = sub.Cancel(); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if err = b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
}

func TestDrainDeliversInArrivalOrder(t *testing.T) {
	b := New()
	var order []int
	if _, err := b.Subscribe("n", func(e Event) error {
		order = append(order, e.Data().(int))
		return nil
	}); err != nil {
		t.Fatalf("sub: %v", err)
	}

	for i := 0; i < 5; i++ {
		b.Enqueue(NewEvent("n", "src", i))
	}
	if len(order) != 0 {
		t.Fatal("enqueue must not deliver")
	}
	if err := b.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("out of order at %d: %v", i, order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(order))
	}
	// Second drain is empty.
	if err := b.Drain(); err != nil {
		t.Fatalf("empty drain: %v", err)
	}
	if len(order) != 5 {
		t.Fatal("empty drain delivered events")
	}
}

func TestSubscribeValidation(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("", func(Event) error { return nil }); err == nil {
		t.Fatal("expected error for empty event type")
	}
	if _, err := b.Subscribe("x", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestMetricsCounters(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("x", func(Event) error { return nil }); err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := b.Publish(NewEvent("x", "src", nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	m := b.Metrics()
	if m.Published != 1 || m.DeliveredHandlers != 1 || m.SubscribersActive != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}
