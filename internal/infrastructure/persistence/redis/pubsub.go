package redis

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nardi-attend/attendance-hub/internal/infrastructure/messaging"
)

// PubSubClient adapts go-redis Pub/Sub to messaging.RedisClient.
type PubSubClient struct {
	cache *Cache

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewPubSubClient creates a PubSubClient.
func NewPubSubClient(cache *Cache) *PubSubClient {
	return &PubSubClient{cache: cache}
}

var _ messaging.RedisClient = (*PubSubClient)(nil)

// Publish sends message to channel.
func (p *PubSubClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return p.cache.Client().Publish(ctx, channel, message).Err()
}

// Subscribe listens on channels until ctx is done or Close is called.
func (p *PubSubClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.cache.Client().Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the subscriptions. The shared client stays open.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, sub := range p.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.subs = nil
	return firstErr
}
