package store

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one published payload.
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages for a set of channels until closed or
// until the context passed to Subscribe is done.
type Subscription interface {
	Channel() <-chan Message
	Close() error
}

const subscriptionBuffer = 64

// memorySubscription is the in-process Subscription used without Redis.
type memorySubscription struct {
	channels map[string]bool
	msgCh    chan Message
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

func newMemorySubscription(channels []string) *memorySubscription {
	set := make(map[string]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}
	return &memorySubscription{
		channels: set,
		msgCh:    make(chan Message, subscriptionBuffer),
		done:     make(chan struct{}),
	}
}

func (s *memorySubscription) Channel() <-chan Message {
	return s.msgCh
}

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
		close(s.msgCh)
	}
	return nil
}

// deliver never blocks: a slow subscriber loses messages rather than
// stalling the publisher.
func (s *memorySubscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.channels[msg.Channel] {
		return
	}
	select {
	case s.msgCh <- msg:
	default:
	}
}

// PubSubHub fans messages out to in-memory subscriptions.
type PubSubHub struct {
	mu          sync.RWMutex
	subscribers map[string][]*memorySubscription
}

func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[string][]*memorySubscription),
	}
}

func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) Subscription {
	sub := newMemorySubscription(channels)

	h.mu.Lock()
	for _, ch := range channels {
		h.subscribers[ch] = append(h.subscribers[ch], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
		h.remove(sub, channels)
	}()

	return sub
}

func (h *PubSubHub) remove(sub *memorySubscription, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range channels {
		subs := h.subscribers[ch]
		for i, s := range subs {
			if s == sub {
				h.subscribers[ch] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subscribers[ch]) == 0 {
			delete(h.subscribers, ch)
		}
	}
}

// Publish delivers payload to every current subscriber of channel and
// returns how many there were.
func (h *PubSubHub) Publish(channel, payload string) int {
	h.mu.RLock()
	subs := append([]*memorySubscription(nil), h.subscribers[channel]...)
	h.mu.RUnlock()

	msg := Message{Channel: channel, Payload: payload}
	for _, s := range subs {
		s.deliver(msg)
	}
	return len(subs)
}

// redisSubscription adapts *redis.PubSub to Subscription.
type redisSubscription struct {
	pubsub *redis.PubSub
	msgCh  chan Message
}

func newRedisSubscription(ctx context.Context, pubsub *redis.PubSub) *redisSubscription {
	s := &redisSubscription{
		pubsub: pubsub,
		msgCh:  make(chan Message, subscriptionBuffer),
	}

	go func() {
		defer close(s.msgCh)
		// The go-redis channel closes when the PubSub is closed.
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case s.msgCh <- Message{Channel: m.Channel, Payload: m.Payload}:
				default:
				}
			}
		}
	}()

	return s
}

func (s *redisSubscription) Channel() <-chan Message {
	return s.msgCh
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
