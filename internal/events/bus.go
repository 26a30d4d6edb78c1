// Package events provides the typed local publish/subscribe bus used for
// lifecycle signals and business event results.
//
// Topics are plain strings: either one of the lifecycle names or a composed
// event key. Listeners run synchronously on the publishing goroutine in
// registration order. A listener added with Once is removed before it is
// invoked, so it observes at most one delivery even under concurrent publishes.
package events

import (
	"sync"
	"sync/atomic"
)

// Lifecycle topics.
const (
	Handshake     = "handshake"
	Validation    = "validation"
	Communication = "communication"
)

// Listener receives the payload of a published topic. Payload is nil when the
// topic was published without one.
type Listener func(payload any)

// Subscription identifies a registered listener so it can be removed later.
type Subscription struct {
	Topic string
	id    uint64
}

type entry struct {
	id       uint64
	once     bool
	listener Listener
}

// Bus is a concurrency-safe topic -> listener list mapping.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]entry
	nextID atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string][]entry)}
}

// On registers a listener that fires on every publish of topic.
func (b *Bus) On(topic string, l Listener) Subscription {
	return b.add(topic, l, false)
}

// Once registers a listener that fires on the next publish of topic only.
func (b *Bus) Once(topic string, l Listener) Subscription {
	return b.add(topic, l, true)
}

func (b *Bus) add(topic string, l Listener, once bool) Subscription {
	id := b.nextID.Add(1)
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], entry{id: id, once: once, listener: l})
	b.mu.Unlock()
	return Subscription{Topic: topic, id: id}
}

// Off removes a single subscription. Removing an unknown subscription is a no-op.
func (b *Bus) Off(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.topics[s.Topic]
	for i, e := range list {
		if e.id == s.id {
			b.topics[s.Topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.topics[s.Topic]) == 0 {
		delete(b.topics, s.Topic)
	}
}

// OffAll removes every listener of topic.
func (b *Bus) OffAll(topic string) {
	b.mu.Lock()
	delete(b.topics, topic)
	b.mu.Unlock()
}

// Publish delivers payload to the listeners of topic and reports how many
// listeners were invoked.
func (b *Bus) Publish(topic string, payload any) int {
	b.mu.Lock()
	list := b.topics[topic]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	kept := list[:0:0]
	for _, e := range list {
		if !e.once {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(b.topics, topic)
	} else {
		b.topics[topic] = kept
	}
	b.mu.Unlock()

	for _, e := range snapshot {
		e.listener(payload)
	}
	return len(snapshot)
}

// Count returns the number of listeners currently registered for topic.
func (b *Bus) Count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
