package pubsub

import (
	"context"
	"path"
	"sync"
)

type memorySubscription struct {
	key     string
	pattern bool
	ch      chan *Event
	cancel  context.CancelFunc
}

// MemoryPubSub is an in-process PubSub. It backs single-instance deployments
// that still run the cluster relay, and tests.
type MemoryPubSub struct {
	mu            sync.RWMutex
	subscriptions map[string]*memorySubscription
}

// NewMemoryPubSub creates an empty in-process bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subscriptions: make(map[string]*memorySubscription)}
}

// Publish delivers the event to every matching subscription without blocking.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		if !sub.matches(channel) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Channel full, skip message
		}
	}
	return nil
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false), nil
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return m.subscribe(ctx, pattern, true), nil
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) <-chan *Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.subscriptions[key]; ok {
		existing.cancel()
		delete(m.subscriptions, key)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, subscriberBuffer),
		cancel:  cancel,
	}
	m.subscriptions[key] = sub

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		if m.subscriptions[key] == sub {
			delete(m.subscriptions, key)
		}
		m.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch
}

// Unsubscribe removes a channel or pattern subscription.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	sub, ok := m.subscriptions[channel]
	if ok {
		delete(m.subscriptions, channel)
	}
	m.mu.Unlock()

	if ok {
		sub.cancel()
	}
	return nil
}

// Close cancels every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*memorySubscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	return nil
}

func (s *memorySubscription) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}
