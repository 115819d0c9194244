package api

import (
	"sync"
)

// Notice is a processed-event notification pushed to live subscribers.
type Notice struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type EventBroker interface {
	Subscribe(scope string) chan Notice
	Unsubscribe(scope string, ch chan Notice)
	Publish(scope string, evt Notice)
}

// Broker is the in-process EventBroker used when no Redis is configured.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Notice]struct{} // scope -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Notice]struct{}{}}
}

func (b *Broker) Subscribe(scope string) chan Notice {
	ch := make(chan Notice, 8)
	b.mu.Lock()
	if b.subs[scope] == nil {
		b.subs[scope] = map[chan Notice]struct{}{}
	}
	b.subs[scope][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(scope string, ch chan Notice) {
	b.mu.Lock()
	if m := b.subs[scope]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, scope)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(scope string, evt Notice) {
	b.mu.Lock()
	for ch := range b.subs[scope] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
