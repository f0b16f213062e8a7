package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker on a Redis server. Keys and sets map to
// plain Redis keys, channels map to Redis pub/sub channels.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker creates a broker backed by the Redis server at addr
// (host:port).
func NewRedisBroker(addr string) *RedisBroker {
	return &RedisBroker{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Get retrieves a key's value, mapping redis.Nil to ErrNotFound.
func (b *RedisBroker) Get(ctx context.Context, key string) (string, error) {
	val, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set stores a value under a key with no expiry.
func (b *RedisBroker) Set(ctx context.Context, key, value string) error {
	if err := b.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetNX stores the value only if the key is currently unset.
func (b *RedisBroker) SetNX(ctx context.Context, key, value string) (bool, error) {
	ok, err := b.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Del removes a key.
func (b *RedisBroker) Del(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// AddToSet adds a member to a Redis set.
func (b *RedisBroker) AddToSet(ctx context.Context, key, member string) error {
	if err := b.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", key, err)
	}
	return nil
}

// RemoveFromSet removes a member from a Redis set.
func (b *RedisBroker) RemoveFromSet(ctx context.Context, key, member string) error {
	if err := b.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis srem %s: %w", key, err)
	}
	return nil
}

// IsMember reports whether member is in a Redis set.
func (b *RedisBroker) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := b.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember %s: %w", key, err)
	}
	return ok, nil
}

// SetMembers returns all members of a Redis set.
func (b *RedisBroker) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := b.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key, err)
	}
	return members, nil
}

// Publish sends a payload on a Redis pub/sub channel.
func (b *RedisBroker) Publish(ctx context.Context, channel, payload string) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a dedicated Redis subscription for one channel. The
// returned Go channel closes when the subscription is closed or the
// connection drops, which the coordinator treats as a disconnect signal.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	sub := b.client.Subscribe(ctx, channel)
	// Force the subscription handshake so a dead broker fails here rather
	// than silently delivering nothing.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			out <- Message{Channel: msg.Channel, Payload: msg.Payload}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

// Ping verifies the Redis server is reachable.
func (b *RedisBroker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
