// Package events fans slot-state changes out to watchers of a
// (vet, date) pair. Delivery is best-effort and at-most-once; a
// subscriber treats any event as "re-fetch availability".
package events

import (
	"fmt"
	"sync"
	"time"

	"vetbook/internal/model"
)

// Kind enumerates slot-state changes.
type Kind string

const (
	KindBooked    Kind = "booked"
	KindCancelled Kind = "cancelled"
	KindExpired   Kind = "expired"
	KindReleased  Kind = "released"
)

// Event tells watchers of a (vet, date) pair that its availability
// changed. Carries no diff; watchers re-fetch.
type Event struct {
	Kind  Kind   `json:"kind"`
	VetID int64  `json:"vet_id"`
	Date  string `json:"date"` // YYYY-MM-DD
}

// Subscription is one watcher's feed for a single topic.
type Subscription struct {
	C     chan Event
	topic string
}

// Notifier is a topic-per-(vet, date) broker. Events for one topic reach
// each subscriber in publish order; when a subscriber falls behind its
// buffer the event is dropped rather than blocking the publisher.
type Notifier struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
}

// NewNotifier constructs an empty broker. buffer is the per-subscriber
// channel depth; values below 1 get a small default.
func NewNotifier(buffer int) *Notifier {
	if buffer < 1 {
		buffer = 16
	}
	return &Notifier{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a watcher for the (vetID, date) topic.
func (n *Notifier) Subscribe(vetID int64, date time.Time) *Subscription {
	sub := &Subscription{
		C:     make(chan Event, n.buffer),
		topic: topicKey(vetID, date),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	subs, ok := n.topics[sub.topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		n.topics[sub.topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the watcher and closes its channel.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs, ok := n.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(n.topics, sub.topic)
	}
	close(sub.C)
}

// Publish delivers the event to every subscriber of its topic. Slow
// subscribers lose the event.
func (n *Notifier) Publish(kind Kind, vetID int64, date time.Time) {
	event := Event{Kind: kind, VetID: vetID, Date: model.DateKey(date)}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for sub := range n.topics[topicKey(vetID, date)] {
		select {
		case sub.C <- event:
		default:
		}
	}
}

// Watchers returns the subscriber count for a topic.
func (n *Notifier) Watchers(vetID int64, date time.Time) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.topics[topicKey(vetID, date)])
}

func topicKey(vetID int64, date time.Time) string {
	return fmt.Sprintf("%d:%s", vetID, model.DateKey(date))
}
