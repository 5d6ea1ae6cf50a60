package memory

import (
	"context"
	"sync"

	"territory-quiz-service/internal/domain"
)

// Notifier is an in-process room event hub for single-instance deployments.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.RoomEvent]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan domain.RoomEvent]struct{})}
}

// Publish fans the event out to the room's subscribers. Slow subscribers get
// their oldest pending event dropped rather than blocking the publisher;
// they reload the full snapshot per event anyway.
func (n *Notifier) Publish(_ context.Context, event domain.RoomEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[event.RoomID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// Subscribe registers a buffered channel of events for one room. The caller
// must invoke the returned cancel function to avoid leaks.
func (n *Notifier) Subscribe(_ context.Context, roomID string) (<-chan domain.RoomEvent, func(), error) {
	ch := make(chan domain.RoomEvent, 8)

	n.mu.Lock()
	if n.subs[roomID] == nil {
		n.subs[roomID] = make(map[chan domain.RoomEvent]struct{})
	}
	n.subs[roomID][ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subs[roomID][ch]; ok {
			delete(n.subs[roomID], ch)
			close(ch)
			if len(n.subs[roomID]) == 0 {
				delete(n.subs, roomID)
			}
		}
		n.mu.Unlock()
	}
	return ch, cancel, nil
}
