package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts *redis.Client to the RedisClient interface the event
// bus consumes.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient wraps an existing go-redis client.
func NewGoRedisClient(client *redis.Client) *GoRedisClient {
	return &GoRedisClient{client: client}
}

// Publish sends a message to a Redis channel.
func (c *GoRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.client.Publish(ctx, channel, message).Err()
}

// Subscribe opens a Pub/Sub subscription and bridges it onto a RedisMessage
// channel. The bridge goroutine exits when the context is cancelled.
func (c *GoRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	pubsub := c.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying client.
func (c *GoRedisClient) Close() error {
	return c.client.Close()
}
