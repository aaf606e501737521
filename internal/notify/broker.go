package notify

import "sync"

// EventBroker fans stream messages out to live SSE and WebSocket subscribers.
type EventBroker interface {
	Subscribe(topic string) chan Message
	Unsubscribe(topic string, ch chan Message)
	Publish(topic string, msg Message) error
}

// Broker is the in-process EventBroker. Slow subscribers miss messages
// rather than block publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Message]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Message]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Message {
	ch := make(chan Message, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Message]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Broker) Publish(topic string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribers reports the number of live subscribers on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
