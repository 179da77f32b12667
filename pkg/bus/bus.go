package bus

import (
	"sync"

	"PortPulse/pkg/logger"
)

// Topic binds a topic name to its payload type. Declaring topics as typed
// values keeps publishers and subscribers agreeing on the payload at compile
// time instead of through stringly-typed event names.
type Topic[T any] struct {
	name string
}

// NewTopic declares a typed topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the wire name of the topic.
func (t Topic[T]) Name() string { return t.name }

type subscription struct {
	id uint64
	fn func(payload any)
}

// Hub is an in-memory, at-most-once publish/subscribe hub. Delivery is
// synchronous on the publisher's goroutine, in subscription order; handlers
// must return promptly. There is no ordering guarantee across topics and no
// delivery guarantee across restarts.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	log    *logger.Logger
}

// New creates a Hub.
func New(log *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[string][]subscription),
		log:  log,
	}
}

// Subscribe registers a handler for the topic and returns an unsubscribe
// function. Handlers registered first are invoked first.
func Subscribe[T any](h *Hub, t Topic[T], fn func(T)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[t.name] = append(h.subs[t.name], subscription{
		id: id,
		fn: func(payload any) {
			v, ok := payload.(T)
			if !ok {
				h.log.Error("bus payload type mismatch", logger.String("topic", t.name))
				return
			}
			fn(v)
		},
	})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[t.name]
		for i, s := range list {
			if s.id == id {
				h.subs[t.name] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the payload synchronously to all current subscribers of
// the topic, in subscription order. A panicking handler is recovered and
// logged; it never prevents delivery to the remaining subscribers or
// propagates to the publisher.
func Publish[T any](h *Hub, t Topic[T], payload T) {
	h.mu.RLock()
	list := make([]subscription, len(h.subs[t.name]))
	copy(list, h.subs[t.name])
	h.mu.RUnlock()

	for _, s := range list {
		h.deliver(t.name, s, payload)
	}
}

func (h *Hub) deliver(topic string, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("bus handler panic",
				logger.String("topic", topic),
				logger.Any("panic", r),
			)
		}
	}()
	s.fn(payload)
}
