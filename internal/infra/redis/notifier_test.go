package redis

import (
	"context"
	"testing"
	"time"

	"territory-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNotifierRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	notifier := NewNotifier(newClient(mr))

	events, cancel, err := notifier.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	notifier.Publish(ctx, domain.RoomEvent{RoomID: "r1", Table: "progress"})

	select {
	case event := <-events:
		if event.RoomID != "r1" || event.Table != "progress" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a published event")
	}
}

func TestNotifierScopesByRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	notifier := NewNotifier(newClient(mr))

	events, cancel, err := notifier.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	notifier.Publish(ctx, domain.RoomEvent{RoomID: "r2", Table: "progress"})
	notifier.Publish(ctx, domain.RoomEvent{RoomID: "r1", Table: "rooms"})

	select {
	case event := <-events:
		if event.RoomID != "r1" || event.Table != "rooms" {
			t.Fatalf("received an event for the wrong room: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the r1 event")
	}
}

func TestNotifierCancelStopsDelivery(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	notifier := NewNotifier(newClient(mr))

	events, cancel, err := notifier.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-events:
			if !open {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after cancel")
		}
	}
}
