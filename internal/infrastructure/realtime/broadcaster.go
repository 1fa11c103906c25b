package realtime

import (
	"sync"

	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// Broadcaster fans realtime updates out to live dashboard subscriptions.
// Each subscriber owns a one-slot mailbox with most-recent-wins semantics: a
// slow consumer never blocks the pipeline, it just skips intermediate states
// and reads the latest one. That is safe because every update carries the
// full refreshed view, not a delta.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[int]*subscriber // topic key -> subscriber id -> sub
	next int
}

type subscriber struct {
	mailbox chan shared.Event
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]*subscriber)}
}

// StudentTopic returns the subscription key for one student's updates.
func StudentTopic(studentID string) string {
	return "student:" + studentID
}

// ClassTopic returns the subscription key for one class's updates.
func ClassTopic(classID string) string {
	return "class:" + classID
}

// Subscribe opens a subscription on a topic key. The returned channel yields
// at most the latest unconsumed update; cancel must be called to release the
// subscription.
func (b *Broadcaster) Subscribe(topic string) (<-chan shared.Event, func()) {
	sub := &subscriber{mailbox: make(chan shared.Event, 1)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]*subscriber)
	}
	id := b.next
	b.next++
	b.subs[topic][id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[topic]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subs, topic)
			}
		}
	}
	return sub.mailbox, cancel
}

// Publish delivers an update to every subscriber of the topic, overwriting
// any unconsumed previous update.
func (b *Broadcaster) Publish(topic string, event shared.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[topic] {
		select {
		case sub.mailbox <- event:
		default:
			// Mailbox full: drop the stale update, keep the new one.
			select {
			case <-sub.mailbox:
			default:
			}
			select {
			case sub.mailbox <- event:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (b *Broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
