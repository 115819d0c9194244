package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so multiple billsync
// replicas share one live event feed.
type RedisBroker struct {
	rdb  *redis.Client
	mu   sync.Mutex
	subs map[chan Notice]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), subs: map[chan Notice]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(scope string) chan Notice {
	ch := make(chan Notice, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(scope))
	// initial consume to ensure subscription
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Notice
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

// Unsubscribe closes the underlying Redis subscription; the reader goroutine
// then drains and closes ch.
func (b *RedisBroker) Unsubscribe(scope string, ch chan Notice) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(scope string, evt Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(scope), data).Err()
}

func (b *RedisBroker) chanName(scope string) string { return "billsync:events:" + scope }
