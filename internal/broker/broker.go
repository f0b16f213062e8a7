package broker

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key doesn't exist in the broker's key/value
// space.
var ErrNotFound = errors.New("key not found")

// ErrClosed is returned when an operation is attempted on a broker whose
// Close has already run.
var ErrClosed = errors.New("broker closed")

// Message is one delivered pub/sub payload.
type Message struct {
	Channel string
	Payload string
}

// Broker is the shared key/value and publish/subscribe substrate the cluster
// coordinates through. Implementations must deliver messages published on
// one channel to each subscriber in publish order; no ordering is guaranteed
// across channels.
//
// All operations take a context and may block on I/O. A broker is shared by
// the coordinator and the change propagator of one node.
type Broker interface {
	// Get retrieves a key's value.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value under a key, overwriting any existing value.
	Set(ctx context.Context, key, value string) error

	// SetNX stores the value only if the key is currently unset.
	// Returns true if the value was stored.
	SetNX(ctx context.Context, key, value string) (bool, error)

	// Del removes a key. No error if the key doesn't exist.
	Del(ctx context.Context, key string) error

	// AddToSet adds a member to the named set.
	AddToSet(ctx context.Context, key, member string) error

	// RemoveFromSet removes a member from the named set.
	// No error if the member is absent.
	RemoveFromSet(ctx context.Context, key, member string) error

	// IsMember reports whether member is in the named set.
	IsMember(ctx context.Context, key, member string) (bool, error)

	// SetMembers returns all members of the named set. Order is not
	// guaranteed.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Publish sends a payload to all current subscribers of a channel.
	// Delivery is best-effort at-least-once; there is no acknowledgement.
	Publish(ctx context.Context, channel, payload string) error

	// Subscribe opens an independent subscription to one channel. The
	// returned channel closes when the subscription ends, either via the
	// cancel func or because the broker connection was lost.
	Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error)

	// Ping verifies the broker is reachable.
	Ping(ctx context.Context) error

	// Close releases the broker connection and ends all subscriptions.
	Close() error
}
