// Package realtime fans database change notifications out to websocket
// clients and carries the viewport messages of each map session.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okayama-voice/opinion-map/internal/metrics"
)

// Topics clients may subscribe to.
const (
	TopicPosts     = "posts-changes"
	TopicDocuments = "documents-updates"
)

// KnownTopic reports whether topic can be subscribed to.
func KnownTopic(topic string) bool {
	return topic == TopicPosts || topic == TopicDocuments
}

// Event describes one row change.
type Event struct {
	Topic string    `json:"topic"`
	Table string    `json:"table"`
	Op    string    `json:"op"`
	ID    string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Subscription receives the events of one topic until it is cancelled or
// replaced.
type Subscription struct {
	ID    uuid.UUID
	Topic string
	Owner string
	C     <-chan Event

	ch   chan Event
	once sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

type ownerTopic struct {
	owner string
	topic string
}

// Hub keeps at most one subscription per owner and topic.
type Hub struct {
	mu      sync.Mutex
	topics  map[string]map[uuid.UUID]*Subscription
	byOwner map[ownerTopic]*Subscription
	buffer  int
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[uuid.UUID]*Subscription),
		byOwner: make(map[ownerTopic]*Subscription),
		buffer:  32,
	}
}

// Subscribe registers owner on topic. An existing subscription of the same
// owner to the same topic is closed and replaced, so an owner never receives
// an event twice.
func (h *Hub) Subscribe(owner, topic string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.New(), Topic: topic, Owner: owner, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := ownerTopic{owner: owner, topic: topic}
	if old, ok := h.byOwner[key]; ok {
		h.removeLocked(old)
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[uuid.UUID]*Subscription)
	}
	h.topics[topic][sub.ID] = sub
	h.byOwner[key] = sub
	metrics.RealtimeSubscribers.WithLabelValues(topic).Set(float64(len(h.topics[topic])))
	return sub
}

// Unsubscribe closes sub. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// UnsubscribeTopic closes the subscription of owner on topic, if any.
func (h *Hub) UnsubscribeTopic(owner, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.byOwner[ownerTopic{owner: owner, topic: topic}]; ok {
		h.removeLocked(sub)
	}
}

// UnsubscribeOwner closes every subscription of owner.
func (h *Hub) UnsubscribeOwner(owner string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, sub := range h.byOwner {
		if key.owner == owner {
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) removeLocked(sub *Subscription) {
	if subs, ok := h.topics[sub.Topic]; ok {
		if _, ok := subs[sub.ID]; ok {
			delete(subs, sub.ID)
			metrics.RealtimeSubscribers.WithLabelValues(sub.Topic).Set(float64(len(subs)))
		}
	}
	key := ownerTopic{owner: sub.Owner, topic: sub.Topic}
	if h.byOwner[key] == sub {
		delete(h.byOwner, key)
	}
	sub.close()
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Publish delivers ev to every subscriber of its topic without blocking.
// A subscriber whose buffer is full misses the event. It returns the number
// of subscribers reached.
func (h *Hub) Publish(ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	metrics.RealtimeEventsTotal.WithLabelValues(ev.Topic).Inc()
	delivered := 0
	for _, sub := range h.topics[ev.Topic] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}
