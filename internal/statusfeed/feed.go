// Package statusfeed is a topic-based pub/sub used purely for
// observability: the operator TUI reads its last-value cache, and nothing
// in internal/broadcast ever reads from it. Publish is safe to call
// from the owning loop without risking backpressure from a slow consumer —
// sends are non-blocking and drop on a full subscriber buffer.
package statusfeed

import (
	"context"
	"sync"
)

// Feed is a topic-keyed publish/subscribe hub plus a last-value cache per
// topic, so a consumer that connects after the fact (an HTTP GET, a freshly
// opened TUI) can render current state without waiting for the next event.
type Feed struct {
	subscribers map[string]map[*Subscription]bool
	last        map[string]any
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// Subscription is a live feed of one topic's published values.
type Subscription struct {
	topic     string
	channel   chan any
	feed      *Feed
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates an empty status feed.
func New() *Feed {
	return &Feed{
		subscribers: make(map[string]map[*Subscription]bool),
		last:        make(map[string]any),
		shutdown:    make(chan struct{}),
	}
}

// Subscribe opens a subscription to topic. The subscription is torn down
// when ctx is cancelled or the feed is shut down.
func (f *Feed) Subscribe(ctx context.Context, topic string) *Subscription {
	f.shutdownMu.Lock()
	if f.isShutdown {
		f.shutdownMu.Unlock()
		return nil
	}
	f.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{topic: topic, channel: make(chan any, 64), feed: f, ctx: subCtx, cancel: cancel}

	f.mu.Lock()
	if f.subscribers[topic] == nil {
		f.subscribers[topic] = make(map[*Subscription]bool)
	}
	f.subscribers[topic][sub] = true
	f.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-f.shutdown:
			sub.close()
		}
	}()

	return sub
}

// Publish sends payload to every subscriber of topic and records it as the
// topic's last known value. It never blocks: a subscriber with a full
// buffer simply misses this update.
func (f *Feed) Publish(topic string, payload any) {
	f.shutdownMu.Lock()
	if f.isShutdown {
		f.shutdownMu.Unlock()
		return
	}
	f.shutdownMu.Unlock()

	f.mu.Lock()
	f.last[topic] = payload
	topicSubs := f.subscribers[topic]
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.channel <- payload:
		default:
		}
	}
}

// Last returns the most recently published value for topic, if any.
func (f *Feed) Last(topic string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.last[topic]
	return v, ok
}

// Snapshot returns every topic's last known value.
func (f *Feed) Snapshot() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]any, len(f.last))
	for k, v := range f.last {
		out[k] = v
	}
	return out
}

// Shutdown closes every subscription and stops accepting new publishes.
func (f *Feed) Shutdown() {
	f.shutdownMu.Lock()
	if f.isShutdown {
		f.shutdownMu.Unlock()
		return
	}
	f.isShutdown = true
	f.shutdownMu.Unlock()

	close(f.shutdown)

	f.mu.Lock()
	for topic := range f.subscribers {
		for sub := range f.subscribers[topic] {
			sub.close()
		}
		delete(f.subscribers, topic)
	}
	f.mu.Unlock()
}

// Channel returns the subscription's message channel.
func (s *Subscription) Channel() <-chan any {
	return s.channel
}

// Unsubscribe removes the subscription from its feed.
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()

	if s.feed.subscribers[s.topic] != nil {
		delete(s.feed.subscribers[s.topic], s)
		if len(s.feed.subscribers[s.topic]) == 0 {
			delete(s.feed.subscribers, s.topic)
		}
	}
	s.close()
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.channel) })
}
