package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishDeliversToTypedSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var capacityEvents, statusEvents int
	dispatcher.Subscribe(EventCapacityChanged, func(_ context.Context, _ Event) error {
		capacityEvents++
		return nil
	})
	dispatcher.Subscribe(EventPartyStatusChanged, func(_ context.Context, _ Event) error {
		statusEvents++
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventCapacityChanged}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if capacityEvents != 1 {
		t.Errorf("capacity handler invoked %d times, want 1", capacityEvents)
	}
	if statusEvents != 0 {
		t.Errorf("status handler invoked %d times, want 0", statusEvents)
	}
}

func TestSubscribeAllReceivesEveryType(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var seen []EventType
	dispatcher.SubscribeAll(func(_ context.Context, event Event) error {
		seen = append(seen, event.Type)
		return nil
	})

	ctx := context.Background()
	for _, eventType := range []EventType{EventWaitlistUpdated, EventPartyStatusChanged, EventCapacityChanged} {
		if err := dispatcher.Publish(ctx, Event{Type: eventType}); err != nil {
			t.Fatalf("Publish(%s): %v", eventType, err)
		}
	}

	if len(seen) != 3 {
		t.Fatalf("catch-all saw %d events, want 3", len(seen))
	}
	if seen[0] != EventWaitlistUpdated || seen[1] != EventPartyStatusChanged || seen[2] != EventCapacityChanged {
		t.Errorf("delivery order = %v", seen)
	}
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var reached bool
	dispatcher.Subscribe(EventWaitlistUpdated, func(_ context.Context, _ Event) error {
		return errors.New("handler failure")
	})
	dispatcher.Subscribe(EventWaitlistUpdated, func(_ context.Context, _ Event) error {
		reached = true
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventWaitlistUpdated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !reached {
		t.Error("second handler not invoked after first handler's error")
	}
}
