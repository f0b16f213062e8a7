package broker

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how many undelivered messages one subscription may
// hold before further publishes to it are dropped.
const subscriberBuffer = 256

// MemoryBroker implements Broker entirely in process memory. It backs tests
// and single-process deployments where no Redis server is available.
// Uses sync.Mutex for thread-safe concurrent access.
type MemoryBroker struct {
	mu      sync.Mutex
	kv      map[string]string
	sets    map[string]map[string]struct{}
	subs    map[string]map[int]chan Message // channel -> subID -> delivery chan
	nextSub int
	closed  bool
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		kv:   make(map[string]string),
		sets: make(map[string]map[string]struct{}),
		subs: make(map[string]map[int]chan Message),
	}
}

// Get retrieves a key's value.
func (b *MemoryBroker) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	val, ok := b.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

// Set stores a value under a key.
func (b *MemoryBroker) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.kv[key] = value
	return nil
}

// SetNX stores the value only if the key is currently unset.
func (b *MemoryBroker) SetNX(_ context.Context, key, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.kv[key]; ok {
		return false, nil
	}
	b.kv[key] = value
	return true, nil
}

// Del removes a key.
func (b *MemoryBroker) Del(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.kv, key)
	return nil
}

// AddToSet adds a member to the named set.
func (b *MemoryBroker) AddToSet(_ context.Context, key, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.sets[key]
	if !ok {
		set = make(map[string]struct{})
		b.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// RemoveFromSet removes a member from the named set.
func (b *MemoryBroker) RemoveFromSet(_ context.Context, key, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sets[key], member)
	return nil
}

// IsMember reports whether member is in the named set.
func (b *MemoryBroker) IsMember(_ context.Context, key, member string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.sets[key][member]
	return ok, nil
}

// SetMembers returns a copy of the named set's members.
func (b *MemoryBroker) SetMembers(_ context.Context, key string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.sets[key]))
	for member := range b.sets[key] {
		out = append(out, member)
	}
	return out, nil
}

// Publish delivers the payload to every current subscriber of the channel.
// Delivery happens under the broker lock, so each subscriber observes one
// channel's messages in publish order. A subscriber that has fallen
// subscriberBuffer messages behind loses the message.
func (b *MemoryBroker) Publish(_ context.Context, channel, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := Message{Channel: channel, Payload: payload}
	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe opens an independent buffered subscription to one channel.
// A closed broker refuses new subscriptions.
func (b *MemoryBroker) Subscribe(_ context.Context, channel string) (<-chan Message, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrClosed
	}

	id := b.nextSub
	b.nextSub++

	ch := make(chan Message, subscriberBuffer)
	if _, ok := b.subs[channel]; !ok {
		b.subs[channel] = make(map[int]chan Message)
	}
	b.subs[channel][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[channel][id]; ok {
			delete(b.subs[channel], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// Ping always succeeds for the in-memory broker.
func (b *MemoryBroker) Ping(_ context.Context) error {
	return nil
}

// Close ends every open subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(b.subs, channel)
	}
	return nil
}
