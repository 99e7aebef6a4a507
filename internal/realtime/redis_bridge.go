package realtime

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "realtime:"

// RedisBridge fans change events out to every service instance through
// Redis pub/sub, one channel per table.
type RedisBridge struct {
	client *redis.Client
}

func NewRedisBridge(client *redis.Client) *RedisBridge {
	return &RedisBridge{client: client}
}

func RedisChannel(table Table) string {
	return redisChannelPrefix + string(table)
}

func (b *RedisBridge) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := encodeChangeEvent(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, RedisChannel(event.Table), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Table, err)
	}
	return nil
}

func (b *RedisBridge) Run(ctx context.Context, sink func(ChangeEvent)) error {
	pubsub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", redisChannelPrefix, err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := DecodeChangeEvent([]byte(msg.Payload))
			if err != nil {
				log.Printf("realtime: dropping malformed redis message on %s: %v", msg.Channel, err)
				continue
			}
			sink(event)
		}
	}
}
