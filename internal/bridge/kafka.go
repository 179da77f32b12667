// Package bridge mirrors backbone events onto Kafka so downstream consumers
// outside the process can follow the pipeline.
package bridge

import (
	"context"
	"encoding/json"
	"time"

	"PortPulse/internal/domain/events"
	"PortPulse/internal/domain/models"
	"PortPulse/pkg/bus"
	"PortPulse/pkg/logger"
)

// Publisher is the producer surface the bridge needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

// Envelope wraps an event for the wire. Type carries the backbone topic name
// so one Kafka topic can multiplex every event kind.
type Envelope struct {
	Type    string          `json:"type"`
	Ts      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// outboundBuffer bounds how many events may wait on the producer before the
// bridge starts shedding.
const outboundBuffer = 256

type outbound struct {
	key []byte
	env Envelope
}

// Bridge forwards state updates, alerts, tick batches and lifecycle events
// to one Kafka topic. Forwarding is best-effort and decoupled from delivery:
// events are handed to a dispatch goroutine through a bounded buffer, so a
// slow broker never blocks the backbone. A failed publish or a full buffer
// drops the event with a log.
type Bridge struct {
	log      *logger.Logger
	producer Publisher
	topic    string
	now      func() time.Time
	unsubs   []func()
	out      chan outbound
	done     chan struct{}
}

// New wires the bridge onto the hub. Close detaches it.
func New(log *logger.Logger, hub *bus.Hub, producer Publisher, topic string) *Bridge {
	b := &Bridge{
		log:      log,
		producer: producer,
		topic:    topic,
		now:      time.Now,
		out:      make(chan outbound, outboundBuffer),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	b.unsubs = []func(){
		bus.Subscribe(hub, events.StateUpdated, func(ev models.StateUpdate) {
			b.forward(events.StateUpdated.Name(), []byte(ev.View.SnapshotID), ev)
		}),
		bus.Subscribe(hub, events.AlertRaised, func(ev models.Alert) {
			b.forward(events.AlertRaised.Name(), []byte(ev.ID), ev)
		}),
		bus.Subscribe(hub, events.MarketTicks, func(ev []models.CleanedTick) {
			if len(ev) == 0 {
				return
			}
			b.forward(events.MarketTicks.Name(), []byte(ev[0].Symbol), ev)
		}),
		bus.Subscribe(hub, events.StorageArchived, func(ev models.LifecycleEvent) {
			b.forward(events.StorageArchived.Name(), []byte(ev.Category), ev)
		}),
		bus.Subscribe(hub, events.StorageDeleted, func(ev models.LifecycleEvent) {
			b.forward(events.StorageDeleted.Name(), []byte(ev.Category), ev)
		}),
	}
	return b
}

// forward runs on the bus delivery goroutine; it only encodes and enqueues.
func (b *Bridge) forward(eventType string, key []byte, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("bridge encode failed", logger.String("event", eventType), logger.Error(err))
		return
	}

	select {
	case b.out <- outbound{key: key, env: Envelope{Type: eventType, Ts: b.now(), Payload: raw}}:
	default:
		b.log.Warn("bridge buffer full, event dropped", logger.String("event", eventType))
	}
}

func (b *Bridge) dispatch() {
	defer close(b.done)
	for msg := range b.out {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := b.producer.Publish(ctx, b.topic, msg.key, msg.env)
		cancel()
		if err != nil {
			b.log.Error("bridge publish failed",
				logger.String("event", msg.env.Type),
				logger.String("topic", b.topic),
				logger.Error(err))
		}
	}
}

// Close detaches from the hub, drains buffered events and closes the
// producer.
func (b *Bridge) Close() error {
	for _, unsub := range b.unsubs {
		unsub()
	}
	close(b.out)
	<-b.done
	return b.producer.Close()
}
