package redis

import (
	"context"
	"encoding/json"
	"log"

	"territory-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Notifier fans room events out over Redis pub/sub so multiple service
// instances can share one room. Channel: room:{roomID}:events.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, event domain.RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.client.Publish(ctx, n.channel(event.RoomID), payload).Err(); err != nil {
		log.Printf("publish room event for %s: %v", event.RoomID, err)
	}
}

func (n *Notifier) Subscribe(ctx context.Context, roomID string) (<-chan domain.RoomEvent, func(), error) {
	sub := n.client.Subscribe(ctx, n.channel(roomID))
	// Force the subscription onto the wire before the caller relies on it.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	ch := make(chan domain.RoomEvent, 8)
	go func() {
		defer close(ch)
		for msg := range sub.Channel() {
			var event domain.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case ch <- event:
			default:
				// Drop the oldest pending event for slow subscribers; they
				// reload the full snapshot per event anyway.
				select {
				case <-ch:
				default:
				}
				ch <- event
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return ch, cancel, nil
}

func (n *Notifier) channel(roomID string) string {
	return "room:" + roomID + ":events"
}
